package pipeline

import (
	"context"
	"errors"

	"github.com/telepair/webcheck/internal/record"
)

// SendSentinel publishes the stop payload on ep.Topic. Only the group member
// that receives it stops.
func SendSentinel(ctx context.Context, d Dialer, ep Endpoint) (err error) {
	if err := ep.validate(); err != nil {
		return err
	}
	pub, err := d.DialPublisher(ctx, ep)
	if err != nil {
		return Fatal("sentinel", "dial", err)
	}
	defer func() { err = errors.Join(err, pub.Close()) }()
	return pub.Publish(ctx, ep.Topic, record.Sentinel)
}
