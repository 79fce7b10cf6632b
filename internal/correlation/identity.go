package correlation

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/snowflake"
)

// IdentitySource produces question identities matching [a-z0-9]+.
type IdentitySource interface {
	Next() string
}

// SnowflakeSource renders snowflake ids in base36. Ids from one node are
// strictly increasing, so they never collide within a process lifetime.
type SnowflakeSource struct {
	node *snowflake.Node
}

var nodeSeq atomic.Int64

// NewSnowflakeSource picks a node number from the wall clock so two bridges
// started side by side are unlikely to share a node. Uniqueness inside the
// process does not depend on that choice.
func NewSnowflakeSource() (*SnowflakeSource, error) {
	n := (time.Now().UnixNano() + nodeSeq.Add(1)) % 1024
	node, err := snowflake.NewNode(n)
	if err != nil {
		return nil, fmt.Errorf("snowflake node: %w", err)
	}
	return &SnowflakeSource{node: node}, nil
}

func (s *SnowflakeSource) Next() string {
	return s.node.Generate().Base36()
}
