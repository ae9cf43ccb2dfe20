package connection

import (
	"github.com/google/uuid"

	"github.com/jwalitptl/care-api/internal/model"
	apperrors "github.com/jwalitptl/care-api/pkg/errors"
)

// who may drive a transition, relative to the connection's creator
type mover int

const (
	receiverOnly mover = iota
	initiatorOnly
	eitherParticipant
)

type edge struct {
	from model.ConnectionStatus
	to   model.ConnectionStatus
}

var transitions = map[edge]mover{
	{model.ConnectionStatusPending, model.ConnectionStatusAccepted}: receiverOnly,
	{model.ConnectionStatusPending, model.ConnectionStatusRejected}: receiverOnly,
	{model.ConnectionStatusPending, model.ConnectionStatusRevoked}:  initiatorOnly,
	{model.ConnectionStatusAccepted, model.ConnectionStatusRevoked}: eitherParticipant,
}

// checkTransition validates moving conn to status `to` on behalf of
// actorID, who must already be a participant.
func checkTransition(conn *model.Connection, actorID uuid.UUID, to model.ConnectionStatus) error {
	if conn.Status.Terminal() {
		return apperrors.InvalidTransition(string(conn.Status), string(to))
	}

	who, ok := transitions[edge{conn.Status, to}]
	if !ok {
		return apperrors.InvalidTransition(string(conn.Status), string(to))
	}

	switch who {
	case receiverOnly:
		if conn.Initiator(actorID) {
			return apperrors.Forbidden("receiver_only",
				"only the receiving side may "+verb(to)+" a pending connection")
		}
	case initiatorOnly:
		if !conn.Initiator(actorID) {
			return apperrors.Forbidden("initiator_only",
				"only the requesting side may cancel a pending connection")
		}
	}
	return nil
}

func verb(to model.ConnectionStatus) string {
	if to == model.ConnectionStatusAccepted {
		return "accept"
	}
	return "reject"
}
