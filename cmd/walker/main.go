package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-wanderqi/internal/presence"
	"backend-wanderqi/internal/tracker"

	"github.com/gorilla/websocket"
)

// walker is a headless roaming client: it registers a character with the
// presence endpoint, feeds sampled (or auto-pathed) positions through the
// accrual tracker, streams move messages, and syncs earned progress back
// over REST on exit.
func main() {
	var (
		apiURL      = flag.String("api", "http://localhost:8080", "backend base URL")
		wsURL       = flag.String("ws", "ws://localhost:8080/presence/ws", "presence websocket URL")
		characterID = flag.String("character", "", "character id to walk as")
		accessToken = flag.String("token", "", "bearer token for progress sync")
		destLat     = flag.Float64("dest-lat", 0, "auto-path destination latitude")
		destLng     = flag.Float64("dest-lng", 0, "auto-path destination longitude")
		duration    = flag.Duration("duration", time.Minute, "how long to roam")
	)
	flag.Parse()

	if *characterID == "" {
		log.Fatal("walker: -character is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	conn, _, err := websocket.DefaultDialer.Dial(*wsURL, nil)
	if err != nil {
		log.Fatalf("walker: dial %s: %v", *wsURL, err)
	}
	defer conn.Close()

	start := tracker.DefaultOrigin
	start.Timestamp = time.Now()

	if err := send(conn, presence.TypeRegister, presence.RegisterPayload{
		CharacterID: *characterID,
		Lat:         start.Lat,
		Lng:         start.Lng,
	}); err != nil {
		log.Fatalf("walker: register: %v", err)
	}

	go readLoop(conn, *characterID)

	var qiEarned int64
	client := tracker.NewClient(0, start, func(res tracker.Result) {
		qiEarned += int64(res.QiGained)
		if err := send(conn, presence.TypeMove, presence.MovePayload{
			Lat:      res.Position.Lat,
			Lng:      res.Position.Lng,
			SpeedKmh: res.SpeedKmh,
		}); err != nil {
			log.Printf("walker: move: %v", err)
		}
	})

	client.Start(ctx, nil)
	if *destLat != 0 || *destLng != 0 {
		client.SetDestination(*destLat, *destLng)
	}

	<-ctx.Done()
	client.Stop()

	walked := client.TotalDistance()
	fmt.Printf("walked %.0fm, earned %d qi\n", walked, qiEarned)
	syncProgress(*apiURL, *characterID, *accessToken, walked, qiEarned)

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
}

func send(conn *websocket.Conn, msgType string, payload any) error {
	frame, err := presence.Encode(msgType, payload)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func readLoop(conn *websocket.Conn, selfID string) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env presence.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		switch env.Type {
		case presence.TypeQiGained:
			var gain presence.QiGainedPayload
			if err := json.Unmarshal(env.Data, &gain); err == nil && gain.ID == selfID {
				fmt.Printf("meditation granted %d qi\n", gain.Amount)
			}
		case presence.TypeError:
			var e presence.ErrorPayload
			if err := json.Unmarshal(env.Data, &e); err == nil {
				log.Printf("walker: server error: %s", e.Message)
			}
		}
	}
}

func syncProgress(apiURL, characterID, token string, distanceM float64, qi int64) {
	body, err := json.Marshal(map[string]any{
		"distance_delta_m": distanceM,
		"qi_delta":         qi,
	})
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPatch,
		fmt.Sprintf("%s/players/%s/progress", apiURL, characterID), bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("walker: progress sync failed: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("walker: progress sync status %d", resp.StatusCode)
	}
}
