package game

import (
	"api/domain"
	"context"
	"encoding/json"
	"sort"
)

func (e *RoomEngine) doJoin(ctx context.Context, userId string) error {
	user, err := e.users.GetUserById(ctx, userId)
	if err != nil {
		return err
	}

	if user.CurrentRoom != nil && *user.CurrentRoom == e.room.Id {
		e.members[user.Id] = user.Username
		e.broadcastRoster()
		return nil
	}

	if err := e.store.SetUserRoom(ctx, userId, &e.room.Id); err != nil {
		return err
	}
	e.members[user.Id] = user.Username
	e.broadcastRoster()
	e.systemMessage(user.Username + " joined the room")
	return nil
}

func (e *RoomEngine) doLeave(ctx context.Context, userId string) (bool, error) {
	if userId == e.room.HostId {
		e.systemMessage("the host closed the room")
		e.teardown(ctx)
		return true, nil
	}

	username, ok := e.members[userId]
	if !ok {
		return false, domain.ErrNotInRoom
	}

	if err := e.store.SetUserRoom(ctx, userId, nil); err != nil {
		return false, err
	}
	delete(e.members, userId)
	delete(e.liveVerdicts, userId)
	if p, connected := e.players[userId]; connected {
		delete(e.players, userId)
		p.CancelAndRelease()
	}

	e.broadcastRoster()
	e.systemMessage(username + " left the room")
	return false, nil
}

func (e *RoomEngine) handleAttach(req attachRequest) {
	p := req.player

	username, ok := e.members[p.Id()]
	if !ok {
		req.errChan <- domain.ErrNotInRoom
		return
	}

	if old, dup := e.players[p.Id()]; dup {
		old.CancelAndRelease()
	}
	e.players[p.Id()] = p

	e.broadcastRoster()
	e.systemMessage(username + " connected")
	req.errChan <- nil
}

// handleDetach runs on socket death. Dropping the connection also drops
// room membership; any scores already in the ledger stay.
func (e *RoomEngine) handleDetach(ctx context.Context, p Player) {
	current, ok := e.players[p.Id()]
	if !ok || current != p {
		p.CancelAndRelease()
		return
	}
	delete(e.players, p.Id())
	p.CancelAndRelease()

	username := e.members[p.Id()]
	delete(e.members, p.Id())
	delete(e.liveVerdicts, p.Id())

	if err := e.store.SetUserRoom(ctx, p.Id(), nil); err != nil {
		e.logger.Error("clearing room membership failed", "user_id", p.Id(), "error", err)
	}

	e.broadcastRoster()
	if username != "" {
		e.systemMessage(username + " disconnected")
	}
}

func (e *RoomEngine) handleClientEvent(env clientEventEnvelope) {
	ctx := context.Background()
	from := env.from

	switch env.event.Name {
	case EventChatMessage:
		var p ChatPayload
		if json.Unmarshal(env.event.Data, &p) != nil || p.Message == "" {
			return
		}
		e.broadcast(EventChatMessage, ChatPayload{
			UserId:   from.Id(),
			Username: from.Username(),
			Message:  p.Message,
		})

	case EventJoinRoom:
		e.broadcastRoster()

	case EventLeaveRoom:
		e.handleDetach(ctx, from)

	case EventNextSpeaker:
		if !e.fromHost(from) {
			return
		}
		if err := e.advanceSpeaker(ctx); err != nil {
			e.logger.Warn("speaker advance rejected", "error", err)
		}

	case EventSetSpeakingOrder:
		if !e.fromHost(from) {
			return
		}
		var p SpeakingOrderPayload
		if json.Unmarshal(env.event.Data, &p) != nil {
			return
		}
		e.applySpeakingOrder(p.Order)

	case EventPhaseUpdate:
		if !e.fromHost(from) {
			return
		}
		var p TargetPhasePayload
		if json.Unmarshal(env.event.Data, &p) != nil {
			return
		}
		e.applyPhaseRequest(ctx, p.Phase)

	case EventSetSuspect:
		// the tally already decided the suspect; clients only echo it
		if !e.fromHost(from) {
			return
		}
		var p SetSuspectPayload
		if json.Unmarshal(env.event.Data, &p) != nil {
			return
		}
		if e.room.SuspectId == nil {
			return
		}
		if p.SuspectId != *e.room.SuspectId {
			e.logger.Warn("client suspect disagrees with tally", "client_suspect", p.SuspectId)
		}
		e.broadcast(EventSetSuspect, SetSuspectPayload{SuspectId: *e.room.SuspectId})

	case EventFinalChoiceVote:
		var p LiveVerdictPayload
		if json.Unmarshal(env.event.Data, &p) != nil {
			return
		}
		if p.Choice != domain.ChoiceLiar && p.Choice != domain.ChoiceNotLiar {
			return
		}
		if _, member := e.members[from.Id()]; !member {
			return
		}
		e.liveVerdicts[from.Id()] = p.Choice
		if len(e.liveVerdicts) >= len(e.players) {
			e.broadcastLiveVerdicts()
		}

	case EventFinalChoiceResult:
		if !e.fromHost(from) {
			return
		}
		e.broadcastLiveVerdicts()
	}
}

func (e *RoomEngine) fromHost(p Player) bool {
	return p.Id() == e.room.HostId
}

// applySpeakingOrder lets the host reorder speakers mid-explain. The
// new order must be a permutation of the current one.
func (e *RoomEngine) applySpeakingOrder(order []string) {
	if e.phase() != PhaseExplaining || len(order) != len(e.speakingOrder) {
		return
	}
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		if _, member := e.members[id]; !member || seen[id] {
			return
		}
		seen[id] = true
	}

	e.speakingOrder = order
	e.speakerIndex = 0
	e.broadcast(EventSetSpeakingOrder, SpeakingOrderPayload{Order: order})
	e.broadcast(EventPhaseUpdate, PhaseUpdatePayload{
		Phase: PhaseTagExplainTurn,
		Info:  ExplainTurnInfo{SpeakerId: order[0]},
	})
	e.armDeadline(PhaseExplaining)
}

func (e *RoomEngine) applyPhaseRequest(ctx context.Context, target string) {
	next, ok := ParsePhase(target)
	if !ok {
		return
	}

	var err error
	switch next {
	case PhaseVoting:
		err = e.openVoting(ctx)
	case PhaseFinalVote:
		err = e.openFinalVote(ctx)
	default:
		err = domain.ErrWrongPhase
	}
	if err != nil {
		e.logger.Warn("phase request rejected", "target", target, "error", err)
	}
}

func (e *RoomEngine) broadcastLiveVerdicts() {
	var counts LiveVerdictResultPayload
	for _, choice := range e.liveVerdicts {
		if choice == domain.ChoiceLiar {
			counts.LiarCount++
		} else {
			counts.NotLiarCount++
		}
	}
	if e.room.SuspectId != nil {
		counts.SuspectId = *e.room.SuspectId
	}
	e.broadcast(EventFinalChoiceResult, counts)
	e.liveVerdicts = map[string]string{}
}

func (e *RoomEngine) broadcast(name string, payload any) {
	data, err := marshalEvent(name, payload)
	if err != nil {
		e.logger.Error("event marshal failed", "event", name, "error", err)
		return
	}
	for _, p := range e.players {
		p.Send(data)
	}
}

func (e *RoomEngine) broadcastRoster() {
	roster := make([]RosterEntry, 0, len(e.members))
	for id, username := range e.members {
		roster = append(roster, RosterEntry{
			UserId:   id,
			Username: username,
			IsHost:   id == e.room.HostId,
		})
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].Username != roster[j].Username {
			return roster[i].Username < roster[j].Username
		}
		return roster[i].UserId < roster[j].UserId
	})
	e.broadcast(EventPlayerUpdate, roster)
}

func (e *RoomEngine) systemMessage(text string) {
	e.broadcast(EventSystemMessage, SystemMessagePayload{Text: text})
}
