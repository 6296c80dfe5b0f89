package afcd

import "context"

// DefaultChannel is reported until a live channel source is wired.
const DefaultChannel = 39

// ChannelOracle reports the DUT's current operating channel.
type ChannelOracle interface {
	CurrentChannel(ctx context.Context) (int, error)
}

// StaticOracle always reports Channel.
type StaticOracle struct {
	Channel int
}

func (s StaticOracle) CurrentChannel(context.Context) (int, error) {
	return s.Channel, nil
}

// OracleFunc adapts a function to ChannelOracle.
type OracleFunc func(ctx context.Context) (int, error)

func (f OracleFunc) CurrentChannel(ctx context.Context) (int, error) {
	return f(ctx)
}

func DefaultOracle() ChannelOracle {
	return StaticOracle{Channel: DefaultChannel}
}
