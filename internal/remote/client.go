package remote

import (
	"context"

	"github.com/roach88/gridsync/internal/model"
)

// Client is the listing store as seen from an editing session.
//
// Every method returns either a successful response or an *Error.
type Client interface {
	Save(ctx context.Context, req SaveRequest) (SaveResponse, error)
	ChangeStatus(ctx context.Context, req StatusRequest) (StatusResponse, error)
	Rows(ctx context.Context, kind model.Kind, bucket string) ([]Row, error)
}
