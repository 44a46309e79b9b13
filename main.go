package main

import (
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ble-link.klederson.com/internal/app"
	"ble-link.klederson.com/internal/bluetooth"
	"ble-link.klederson.com/internal/config"
	"ble-link.klederson.com/internal/controller"
	"ble-link.klederson.com/internal/history"
	"ble-link.klederson.com/internal/notify"
)

var (
	flagDemo        bool
	flagAdapter     string
	flagFilter      string
	flagServiceUUID string
	flagCharUUID    string
	flagReconnect   time.Duration
	flagLiveness    time.Duration
	flagListen      string
	flagHistory     string
	flagLogFile     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ble-link",
		Short: "BLE Link - Terminal companion for BLE sensor peripherals",
		Long: `BLE Link scans for Bluetooth Low Energy peripherals, connects to one,
subscribes to its notification characteristic and surfaces every received
payload in a list view, over WebSocket, and optionally into SQLite.

Dropped links are re-established automatically on a fixed retry interval.

Requires sudo or CAP_NET_ADMIN capability for real Bluetooth scanning.
Use --demo flag for demonstration mode without Bluetooth hardware.`,
		RunE: run,
	}

	rootCmd.Flags().BoolVar(&flagDemo, "demo", false, "Run in demo mode with fake peripherals (no Bluetooth required)")
	rootCmd.Flags().StringVar(&flagAdapter, "adapter", "hci0", "Bluetooth adapter to use")
	rootCmd.Flags().StringVar(&flagFilter, "filter", "", "Only admit peripherals whose name contains this substring")
	rootCmd.Flags().StringVar(&flagServiceUUID, "service-uuid", config.DefaultServiceUUID, "GATT service UUID to subscribe under")
	rootCmd.Flags().StringVar(&flagCharUUID, "char-uuid", config.DefaultCharUUID, "Notify characteristic UUID")
	rootCmd.Flags().DurationVar(&flagReconnect, "reconnect-interval", config.ReconnectInterval, "Retry cadence after a lost link")
	rootCmd.Flags().DurationVar(&flagLiveness, "liveness-interval", config.LivenessInterval, "Link health check cadence")
	rootCmd.Flags().StringVar(&flagListen, "listen", "", "Address for the notification/state API (e.g. :8675, empty disables)")
	rootCmd.Flags().StringVar(&flagHistory, "history", "", "SQLite file for payload persistence (empty disables)")
	rootCmd.Flags().StringVar(&flagLogFile, "log-file", "", "Write logs to this file (the TUI owns the terminal)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.New()
	if flagLogFile != "" {
		f, err := os.OpenFile(flagLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetOutput(io.Discard)
	}

	var link bluetooth.Link
	if flagDemo {
		link = bluetooth.NewMockLink()
	} else {
		central, err := bluetooth.NewCentral(flagServiceUUID, flagCharUUID, log)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\nError: %v\n\n", err)
			fmt.Fprintln(os.Stderr, "Bluetooth scanning requires elevated permissions.")
			fmt.Fprintln(os.Stderr, "Try one of:")
			fmt.Fprintln(os.Stderr, "  sudo ./ble-link")
			fmt.Fprintln(os.Stderr, "  sudo setcap cap_net_admin+ep ./ble-link")
			fmt.Fprintln(os.Stderr, "  ./ble-link --demo    (demo mode, no hardware needed)")
			return err
		}
		link = central
	}

	cfg := controller.Config{
		ReconnectInterval: flagReconnect,
		LivenessInterval:  flagLiveness,
		Log:               log,
	}

	if flagHistory != "" {
		sink, err := history.OpenSQLiteSink(flagHistory)
		if err != nil {
			return err
		}
		defer sink.Close()
		cfg.Sink = sink
	}

	var hub *notify.Hub
	if flagListen != "" {
		hub = notify.NewHub(log)
		cfg.Notifier = hub
	}

	ctrl := controller.New(link, cfg)
	defer ctrl.Close()
	ctrl.StartScan(flagFilter)

	if hub != nil {
		srv := notify.NewServer(flagListen, hub, func() interface{} {
			return ctrl.Snapshot()
		}, log)
		srv.Start()
		defer srv.Stop()
	}

	p := tea.NewProgram(
		app.New(ctrl, flagAdapter),
		tea.WithAltScreen(),
		tea.WithFPS(30),
	)

	_, err := p.Run()
	return err
}
