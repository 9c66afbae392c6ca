package actorutil

import (
	"github.com/berfenger/eosconnect/internal/core/domain"

	"github.com/asynkron/protoactor-go/actor"
)

type forRequest struct {
	req domain.ActorRequest
}

type ExtendedRequest interface {
	Respond(ctx actor.Context, resp domain.ActorResponse)
	ReplyTo(ctx actor.Context) *actor.PID
}

func ForRequest(r domain.ActorRequest) ExtendedRequest {
	return forRequest{req: r}
}

func (r forRequest) Respond(ctx actor.Context, resp domain.ActorResponse) {
	if r.req.ReplyTo() != nil {
		ctx.Send((*actor.PID)(r.req.ReplyTo()), resp)
	} else if ctx.Sender() != nil {
		ctx.Respond(resp)
	}
}

func (r forRequest) ReplyTo(ctx actor.Context) *actor.PID {
	if r.req.ReplyTo() != nil {
		return (*actor.PID)(r.req.ReplyTo())
	}
	return ctx.Sender()
}

// RespondTo replies to pid, ignoring nil.
func RespondTo(ctx actor.Context, pid *actor.PID, resp any) {
	if pid != nil {
		ctx.Send(pid, resp)
	}
}

// RespondToRoot is RespondTo for goroutines that do not own an actor context.
func RespondToRoot(root *actor.RootContext, pid *actor.PID, resp any) {
	if pid != nil {
		root.Send(pid, resp)
	}
}
