package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

func RegisterRoutes(r fiber.Router, client *Client) {
	r.Get("/suggest", func(c *fiber.Ctx) error {
		return c.JSON(client.Suggest(c.Context(), c.Query("q")))
	})

	r.Get("/search", func(c *fiber.Ctx) error {
		q := c.Query("q")
		if q == "" {
			return fiber.NewError(fiber.StatusBadRequest, "q required")
		}
		place, err := client.Lookup(c.Context(), q)
		if errors.Is(err, ErrNoMatch) {
			return fiber.NewError(fiber.StatusNotFound, "no matching place")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "place search unavailable")
		}
		return c.JSON(place)
	})
}

// RegisterStreamRoutes mounts the live search box: every inbound text frame
// is the current input, every outbound frame a JSON suggestion list.
func RegisterStreamRoutes(r fiber.Router, client *Client, delay time.Duration) {
	r.Get("/search/:sessionID", websocket.New(func(c *websocket.Conn) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan []byte, 1)
		d := NewDebouncer(ctx, delay, client.Suggest, func(places []Place) {
			payload, err := json.Marshal(places)
			if err != nil {
				return
			}
			offerLatest(ctx, out, payload)
		})

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case msg := <-out:
					if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			d.Input(string(msg))
		}
		d.Close()
		cancel()
		<-done
	}))
}

// offerLatest queues payload, replacing a frame the writer has not sent
// yet. Only the newest suggestion list is worth delivering.
func offerLatest(ctx context.Context, out chan []byte, payload []byte) {
	for {
		select {
		case out <- payload:
			return
		case <-ctx.Done():
			return
		default:
		}
		select {
		case <-out:
		default:
		}
	}
}
