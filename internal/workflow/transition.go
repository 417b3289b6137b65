package workflow

import (
	"errors"
	"time"
)

var (
	// ErrUnknownRoom is returned when a room identifier is not part of the catalog.
	ErrUnknownRoom = errors.New("workflow: unknown room")
	// ErrWrongRoom is returned when the patient is not currently in the named room.
	ErrWrongRoom = errors.New("workflow: patient is not in this room")
	// ErrAlreadySeen is returned when the patient's current room was already completed.
	ErrAlreadySeen = errors.New("workflow: patient already seen in this room")
)

// nextRoomDelay separates the exit of one room from the entry into the next
// so history sorted by timestamp keeps a deterministic order.
const nextRoomDelay = time.Millisecond

// NewPatient creates a patient waiting in the catalog's intake room. When
// request carries a requested exam the intake stage completes immediately:
// the history then holds a closed intake entry and an open entry for the
// following room.
func (c *Catalog) NewPatient(id, fullName string, birthDate time.Time, phone string, request *RequestData, now time.Time) *Patient {
	first := c.First()
	patient := &Patient{
		ID:            id,
		FullName:      fullName,
		BirthDate:     birthDate,
		Phone:         phone,
		CurrentRoomID: first.ID,
		StatusInRoom:  StatusWaiting,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if request == nil || request.RequestedExam == "" || first.Terminal() {
		patient.History = append(patient.History, HistoryEntry{
			RoomID:        first.ID,
			EntryDate:     now,
			StatusMessage: entryMessage(first),
		})
		if request != nil {
			patient.RoomData.merge(first.ID, RoomData{Request: request})
		}
		return patient
	}

	patient.RoomData.merge(first.ID, RoomData{Request: request})

	exit := now
	patient.History = append(patient.History, HistoryEntry{
		RoomID:        first.ID,
		EntryDate:     now,
		ExitDate:      &exit,
		StatusMessage: first.DoneMessage,
	})

	next, _ := c.Room(first.NextRoomID)
	patient.History = append(patient.History, HistoryEntry{
		RoomID:        next.ID,
		EntryDate:     now.Add(nextRoomDelay),
		StatusMessage: entryMessage(next),
	})
	patient.CurrentRoomID = next.ID
	patient.StatusInRoom = StatusWaiting
	return patient
}

// Advance applies the effect of "patient completed the form for roomID":
// the room's payload is merged, the open entry for the room is closed, a
// completion entry carrying the room's status message is appended, and the
// patient moves to the configured next room (or becomes SEEN when the room
// is terminal).
func (c *Catalog) Advance(patient *Patient, roomID RoomID, data RoomData, now time.Time) error {
	room, ok := c.Room(roomID)
	if !ok {
		return ErrUnknownRoom
	}
	if patient.CurrentRoomID != room.ID {
		return ErrWrongRoom
	}
	if patient.StatusInRoom != StatusWaiting {
		return ErrAlreadySeen
	}

	patient.RoomData.merge(room.ID, data)
	closeOpenEntry(patient, room.ID, now)

	marker := HistoryEntry{
		RoomID:        room.ID,
		EntryDate:     now,
		StatusMessage: room.DoneMessage,
	}

	if room.Terminal() {
		patient.History = append(patient.History, marker)
		patient.StatusInRoom = StatusSeen
		patient.UpdatedAt = now
		return nil
	}

	exit := now
	marker.ExitDate = &exit
	patient.History = append(patient.History, marker)

	next, ok := c.Room(room.NextRoomID)
	if !ok {
		return ErrUnknownRoom
	}
	patient.History = append(patient.History, HistoryEntry{
		RoomID:        next.ID,
		EntryDate:     now.Add(nextRoomDelay),
		StatusMessage: entryMessage(next),
	})
	patient.CurrentRoomID = next.ID
	patient.StatusInRoom = StatusWaiting
	patient.UpdatedAt = now
	return nil
}

// Move transfers the patient to an arbitrary catalog room, bypassing the
// configured pathway. It exists as an out-of-band correction: the open entry
// is closed, an exit marker is appended, and the patient is left waiting in
// the target room. The target must exist in the catalog but no pathway
// consistency is enforced.
func (c *Catalog) Move(patient *Patient, targetRoomID RoomID, now time.Time) error {
	target, ok := c.Room(targetRoomID)
	if !ok {
		return ErrUnknownRoom
	}

	closeOpenEntry(patient, patient.CurrentRoomID, now)

	exit := now
	patient.History = append(patient.History, HistoryEntry{
		RoomID:        patient.CurrentRoomID,
		EntryDate:     now,
		ExitDate:      &exit,
		StatusMessage: "Transfert manuel vers " + target.Name,
	})
	patient.History = append(patient.History, HistoryEntry{
		RoomID:        target.ID,
		EntryDate:     now.Add(nextRoomDelay),
		StatusMessage: entryMessage(target),
	})
	patient.CurrentRoomID = target.ID
	patient.StatusInRoom = StatusWaiting
	patient.UpdatedAt = now
	return nil
}

// closeOpenEntry sets the exit date of the most recent open entry for roomID.
// The exit never precedes the entry, even if the clock moved backwards.
func closeOpenEntry(patient *Patient, roomID RoomID, now time.Time) {
	for i := len(patient.History) - 1; i >= 0; i-- {
		entry := &patient.History[i]
		if entry.RoomID != roomID || !entry.Open() {
			continue
		}
		exit := now
		if exit.Before(entry.EntryDate) {
			exit = entry.EntryDate
		}
		entry.ExitDate = &exit
		return
	}
}

func entryMessage(room Room) string {
	return "Arrivée en salle " + room.Name
}
