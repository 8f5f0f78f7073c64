package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/goccy/go-yaml"

	"slotrouter/pkg/slot"
)

const defaultWatchRetry = 2 * time.Second

// zkConn is the subset of *zk.Conn the source needs.
type zkConn interface {
	Exists(path string) (bool, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Set(path string, data []byte, version int32) (*zk.Stat, error)
	State() zk.State
	Close()
}

// ZKSource reads the slot list from a single znode and follows its changes.
// The znode holds a YAML document: "slots: [{start, end, master, replicas}]".
type ZKSource struct {
	conn  zkConn
	path  string
	retry time.Duration
}

// servers: ["zk1:2181", "zk2:2181"]
func NewZKSource(servers []string, path string, sessionTimeout time.Duration) (*ZKSource, error) {
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("zk connect: %w", err)
	}
	return newZKSource(conn, path), nil
}

func newZKSource(conn zkConn, path string) *ZKSource {
	return &ZKSource{
		conn:  conn,
		path:  path,
		retry: defaultWatchRetry,
	}
}

func (s *ZKSource) Close() error {
	s.conn.Close()
	return nil
}

type slotDocument struct {
	Slots []Slot `yaml:"slots"`
}

// DecodeSlots parses and validates a slot document.
func DecodeSlots(data []byte) ([]Slot, error) {
	var doc slotDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode slots: %w", err)
	}
	if err := ValidateSlots(doc.Slots); err != nil {
		return nil, err
	}
	return doc.Slots, nil
}

func EncodeSlots(slots []Slot) ([]byte, error) {
	data, err := yaml.Marshal(slotDocument{Slots: slots})
	if err != nil {
		return nil, fmt.Errorf("encode slots: %w", err)
	}
	return data, nil
}

// ValidateSlots checks each range on its own. Overlaps are not detected.
func ValidateSlots(slots []Slot) error {
	for i, s := range slots {
		switch {
		case s.Start > s.End:
			return fmt.Errorf("slot range %d: start %d > end %d", i, s.Start, s.End)
		case s.End >= slot.Count:
			return fmt.Errorf("slot range %d: end %d out of range", i, s.End)
		case s.Master == "":
			return fmt.Errorf("slot range %d: empty master address", i)
		}
	}
	return nil
}

func (s *ZKSource) ensurePath(path string) error {
	parts := strings.Split(path, "/")
	cur := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		cur = cur + "/" + p
		exists, _, err := s.conn.Exists(cur)
		if err != nil {
			return err
		}
		if !exists {
			_, err = s.conn.Create(cur, nil, 0, zk.WorldACL(zk.PermAll))
			if err != nil && !errors.Is(err, zk.ErrNodeExists) {
				return err
			}
		}
	}
	return nil
}

// Publish writes slots to the znode, creating it if needed.
func (s *ZKSource) Publish(slots []Slot) error {
	if err := ValidateSlots(slots); err != nil {
		return err
	}
	data, err := EncodeSlots(slots)
	if err != nil {
		return err
	}
	if i := strings.LastIndex(s.path, "/"); i > 0 {
		if err := s.ensurePath(s.path[:i]); err != nil {
			return fmt.Errorf("ensure %s: %w", s.path[:i], err)
		}
	}

	_, err = s.conn.Create(s.path, data, 0, zk.WorldACL(zk.PermAll))
	if errors.Is(err, zk.ErrNodeExists) {
		// -1: any version
		_, err = s.conn.Set(s.path, data, -1)
	}
	if err != nil {
		return fmt.Errorf("zk write %s: %w", s.path, err)
	}

	slog.Info("slot document published", "path", s.path, "ranges", len(slots))
	return nil
}

// RunWatch sends the slot list to out on start and after every change of
// the znode, until ctx is done. Unparsable documents are logged and skipped.
func (s *ZKSource) RunWatch(ctx context.Context, out chan<- []Slot) {
	go func() {
		for {
			events, ok := s.watchOnce(ctx, out)
			if !ok {
				slog.Info("zk watch stopped", "path", s.path)
				return
			}
			if events == nil {
				continue
			}

			select {
			case ev := <-events:
				slog.Debug("zk event", "type", ev.Type, "path", ev.Path)
			case <-ctx.Done():
				slog.Info("zk watch stopped", "path", s.path)
				return
			}
		}
	}()
}

// watchOnce reads the znode and arms a watch on it. events is nil when the
// read should simply be retried.
func (s *ZKSource) watchOnce(ctx context.Context, out chan<- []Slot) (<-chan zk.Event, bool) {
	data, _, events, err := s.conn.GetW(s.path)
	if errors.Is(err, zk.ErrNoNode) {
		// ждём, пока документ появится
		var exists bool
		exists, _, events, err = s.conn.ExistsW(s.path)
		if err == nil {
			if exists {
				return nil, ctx.Err() == nil
			}
			slog.Warn("slot document missing, waiting", "path", s.path)
			return events, true
		}
	}
	if err != nil {
		slog.Warn("zk watch error", "path", s.path, "error", err)
		select {
		case <-time.After(s.retry):
			return nil, true
		case <-ctx.Done():
			return nil, false
		}
	}

	slots, err := DecodeSlots(data)
	if err != nil {
		slog.Error("invalid slot document", "path", s.path, "error", err)
		return events, true
	}

	select {
	case out <- slots:
	case <-ctx.Done():
		return nil, false
	}
	return events, true
}

// WaitConnected blocks until the session is established or timeout passes.
func (s *ZKSource) WaitConnected(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		st := s.conn.State()
		if st == zk.StateConnected || st == zk.StateHasSession {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("zk: not connected after %s, state=%v", timeout, st)
		}
		time.Sleep(200 * time.Millisecond)
	}
}
