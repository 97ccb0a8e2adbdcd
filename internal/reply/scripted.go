package reply

import (
	"context"
	"strconv"

	"github.com/roach88/cohort/internal/ident"
	"github.com/roach88/cohort/internal/script"
)

// Scripted answers from the script document itself. The first user turn gets
// the welcome burst; later turns get one of the authored replies, picked by
// hashing the user and message so the same input always yields the same
// reply.
type Scripted struct {
	script *script.Script
}

// NewScripted returns a generator backed by s. A nil s never replies.
func NewScripted(s *script.Script) *Scripted {
	return &Scripted{script: s}
}

// Generate implements Generator.
func (g *Scripted) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if g.script == nil {
		return Response{}, ErrNoReply
	}
	vars := script.Vars{FirstName: req.FirstName}

	if req.Turn == 0 && len(g.script.Welcome) > 0 {
		burst := make([]Item, len(g.script.Welcome))
		for i, line := range g.script.Welcome {
			burst[i] = Item{
				ResponderID: line.SenderKey,
				Content:     script.Substitute(line.Content, vars),
				DelayMs:     int64(line.DelayMs),
			}
		}
		return Response{Burst: burst}, nil
	}

	if len(g.script.Replies) == 0 {
		return Response{}, ErrNoReply
	}
	n := ident.Uint64(ident.DomainReply, req.UserID, req.UserMessage, strconv.Itoa(req.Turn))
	line := g.script.Replies[n%uint64(len(g.script.Replies))]
	return Response{Single: &Item{
		ResponderID: line.SenderKey,
		Content:     script.Substitute(line.Content, vars),
	}}, nil
}
