package game

import (
	"encoding/json"
	"sync"

	"golang.org/x/time/rate"
)

type roomPlayer struct {
	id          string
	username    string
	rateLimiter *rate.Limiter
	socket      NetworkSession
	inbox       chan []byte
	pingChan    chan struct{}
	done        chan struct{}
	engine      *RoomEngine
	releaseOnce sync.Once
}

func NewPlayer(id, username string, socket NetworkSession) *roomPlayer {
	return &roomPlayer{
		id:          id,
		username:    username,
		rateLimiter: rate.NewLimiter(1, 5),
		socket:      socket,
		inbox:       make(chan []byte, 256),
		pingChan:    make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

func (p *roomPlayer) Id() string       { return p.id }
func (p *roomPlayer) Username() string { return p.username }

// Send queues data for the write pump. A player that cannot keep up
// loses messages rather than stalling the room.
func (p *roomPlayer) Send(data []byte) error {
	select {
	case p.inbox <- data:
		return nil
	case <-p.done:
		return nil
	default:
		return nil
	}
}

func (p *roomPlayer) Ping() error {
	select {
	case p.pingChan <- struct{}{}:
	case <-p.done:
	default:
	}
	return nil
}

func (p *roomPlayer) CancelAndRelease() {
	p.releaseOnce.Do(func() {
		close(p.done)
		p.socket.Close("")
	})
}

func (p *roomPlayer) ReadPump() {
	for {
		data, err := p.socket.Read()
		if err != nil {
			break
		}

		if !p.rateLimiter.Allow() {
			continue
		}

		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.Name == "" {
			continue
		}

		p.engine.submitClientEvent(clientEventEnvelope{event: ev, from: p})
	}

	p.engine.RequestDetach(p)
}

func (p *roomPlayer) WritePump() {
	for {
		select {
		case data := <-p.inbox:
			if err := p.socket.Write(data); err != nil {
				p.CancelAndRelease()
				return
			}
		case <-p.pingChan:
			if err := p.socket.Ping(); err != nil {
				p.CancelAndRelease()
				return
			}
		case <-p.done:
			return
		}
	}
}
