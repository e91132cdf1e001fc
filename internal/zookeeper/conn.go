// internal/zookeeper/conn.go
package zookeeper

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
)

// Conn 封装 ZooKeeper 连接
type Conn struct {
	*zk.Conn
}

// NewConn 建立到 ZooKeeper 集群的连接
// addrs 格式为 "ip1:port1,ip2:port2"
func NewConn(addrs string, sessionTimeout time.Duration) (*Conn, error) {
	conn, _, err := zk.Connect(strings.Split(addrs, ","), sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect zookeeper %s: %w", addrs, err)
	}
	return &Conn{Conn: conn}, nil
}

// EnsurePath 逐级确保路径上的持久节点存在
func (c *Conn) EnsurePath(path string) error {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	current := ""
	for _, part := range parts {
		current += "/" + part
		_, err := c.Create(current, []byte{}, 0, zk.WorldACL(zk.PermAll))
		if err != nil && err != zk.ErrNodeExists {
			return fmt.Errorf("failed to create node %s: %w", current, err)
		}
	}
	return nil
}
