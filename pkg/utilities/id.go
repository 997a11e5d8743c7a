package utilities

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeMu sync.Mutex
	node   *snowflake.Node
)

// NewAccountID returns a time-sortable, globally unique account id.
func NewAccountID() string {
	return ksuid.New().String()
}

// SetSnowflakeNode configures the node used by NewRequestID. It must be called
// before the first request id is generated to take effect.
func SetSnowflakeNode(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	nodeMu.Lock()
	node = n
	nodeMu.Unlock()
	return nil
}

// NewRequestID generates a snowflake id string. If no node was configured it
// lazily uses node 1; if that fails too it falls back to a KSUID.
func NewRequestID() string {
	nodeMu.Lock()
	if node == nil {
		n, err := snowflake.NewNode(1)
		if err != nil {
			nodeMu.Unlock()
			return ksuid.New().String()
		}
		node = n
	}
	n := node
	nodeMu.Unlock()
	return n.Generate().String()
}
