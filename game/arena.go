package game

import (
	"api/domain"
	"context"
	"sync"
	"time"
)

type engineGetRequest struct {
	roomId int64
	resp   chan *RoomEngine
}

// arena tracks every live room engine and fans the shared clock out to
// them. One goroutine owns the map; everything else sends messages.
type arena struct {
	rooms map[int64]*RoomEngine

	addAndRunChan chan *RoomEngine
	removeChan    chan int64
	getReqs       chan engineGetRequest

	tickerCreator PeriodicTickerChannelCreator
	wg            *sync.WaitGroup
}

func NewArena(tickerCreator PeriodicTickerChannelCreator, wg *sync.WaitGroup) *arena {
	return &arena{
		rooms:         map[int64]*RoomEngine{},
		addAndRunChan: make(chan *RoomEngine, 32),
		removeChan:    make(chan int64, 32),
		getReqs:       make(chan engineGetRequest, 256),
		tickerCreator: tickerCreator,
		wg:            wg,
	}
}

func (a *arena) AddAndRunRoom(ctx context.Context, e *RoomEngine) {
	select {
	case a.addAndRunChan <- e:
	case <-ctx.Done():
	}
}

// RemoveRoom is called by an engine during its own teardown.
func (a *arena) RemoveRoom(roomId int64) {
	select {
	case a.removeChan <- roomId:
	default:
	}
}

func (a *arena) GetRoom(ctx context.Context, roomId int64) (*RoomEngine, error) {
	respChan := make(chan *RoomEngine, 1)

	select {
	case a.getReqs <- engineGetRequest{roomId: roomId, resp: respChan}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case e := <-respChan:
		if e == nil {
			return nil, domain.ErrRoomNotFound
		}
		return e, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *arena) ArenaActor(started chan struct{}) {
	ticker := a.tickerCreator.Create(time.Second)
	pingTicker := a.tickerCreator.Create(time.Second * 30)

	close(started)

	for {
		select {
		case now := <-ticker:
			for _, e := range a.rooms {
				e.Tick(now)
			}
		case <-pingTicker:
			for _, e := range a.rooms {
				e.PingPlayers()
			}
		case e := <-a.addAndRunChan:
			a.handleAddAndRun(e)
		case roomId := <-a.removeChan:
			delete(a.rooms, roomId)
		case req := <-a.getReqs:
			req.resp <- a.rooms[req.roomId]
		}
	}
}

func (a *arena) handleAddAndRun(e *RoomEngine) {
	a.rooms[e.RoomId()] = e
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		e.Run()
	}()
}
