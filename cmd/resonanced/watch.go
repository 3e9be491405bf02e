package main

import (
	"fmt"
	"net/url"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	rtui "github.com/Pharbi/arachnid/cmd/resonanced/tui"
	"github.com/Pharbi/arachnid/internal/ports"
)

func newWatchCommand(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "watch <web-id>",
		Short: "Stream a running web's events from a resonanced serve instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			webID := args[0]
			if addr == "" {
				addr = c.cfg.HTTPBindAddr
			}
			wsURL := url.URL{Scheme: "ws", Host: addr, Path: "/webs/" + webID + "/events"}

			conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
			if err != nil {
				return fmt.Errorf("connect to %s: %w", wsURL.String(), err)
			}
			defer conn.Close()

			model := rtui.New(webID)
			program := tea.NewProgram(model, tea.WithAltScreen())

			go func() {
				for {
					var e ports.Event
					if err := conn.ReadJSON(&e); err != nil {
						program.Send(rtui.DisconnectedMsg{Err: err})
						return
					}
					program.Send(rtui.EventMsg{Event: e})
				}
			}()

			_, err = program.Run()
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "host:port of a resonanced serve instance (defaults to --http-addr)")
	return cmd
}
