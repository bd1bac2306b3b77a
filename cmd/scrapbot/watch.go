package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"scrapbot.ai/internal/observerproto"
	"scrapbot.ai/internal/sim/encoding"
)

var (
	watchURL    string
	watchEvery  int
	watchEvents bool
	watchMap    bool
	watchSize   int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running agent over the observer websocket",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.New(cmd.OutOrStdout(), "[watch] ", log.LstdFlags|log.Lmicroseconds)
		conn, _, err := websocket.DefaultDialer.Dial(watchURL, nil)
		if err != nil {
			return fmt.Errorf("dial: %w", err)
		}
		defer conn.Close()

		sub := observerproto.SubscribeMsg{
			Type:            observerproto.TypeSubscribe,
			ProtocolVersion: observerproto.Version,
			Every:           watchEvery,
			Events:          watchEvents,
		}
		if err := conn.WriteJSON(sub); err != nil {
			return fmt.Errorf("send SUBSCRIBE: %w", err)
		}

		ctx, cancel := signalContext()
		defer cancel()
		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			var env observerproto.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			switch env.Type {
			case observerproto.TypeHello:
				var h observerproto.HelloMsg
				if err := json.Unmarshal(msg, &h); err != nil {
					continue
				}
				logger.Printf("HELLO session=%s run=%s map=%s size=%d", h.SessionID, h.RunID, h.Map, h.Size)
				watchSize = h.Size

			case observerproto.TypeSnapshot:
				var m observerproto.SnapshotMsg
				if err := json.Unmarshal(msg, &m); err != nil {
					continue
				}
				s := m.Snapshot
				logger.Printf("tick=%d pos=%v phase=%s result=%s inv=%v score=%v energy=%d explored=%.0f%%",
					s.Tick, s.Pos, s.Phase, s.Result, s.Inventory, s.Score, s.Energy, s.Explored*100)
				for _, ev := range s.Events {
					logger.Printf("  event %s", ev)
				}
				if s.Error != "" {
					logger.Printf("  error %s", s.Error)
				}
				if watchMap && s.KnownMap != "" {
					known, err := encoding.DecodeKnownMap(watchSize, s.KnownMap)
					if err != nil {
						logger.Printf("  map: %v", err)
						continue
					}
					for _, row := range encoding.Render(known, s.Pos) {
						fmt.Fprintln(cmd.OutOrStdout(), "|"+row+"|")
					}
				}
			}
		}
	},
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&watchURL, "url", "ws://127.0.0.1:8081/v1/observer/ws", "observer ws url")
	f.IntVar(&watchEvery, "every", 1, "print every n-th tick")
	f.BoolVar(&watchEvents, "events", false, "include recent host events")
	f.BoolVar(&watchMap, "map", false, "draw the known map after each snapshot")
}
