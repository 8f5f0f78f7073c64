package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"slotrouter/pkg/client"
	"slotrouter/pkg/cluster"
	"slotrouter/pkg/config"
)

const usage = `usage: routectl [-addr URL] [-timeout D] <command>

commands:
  slot <key>                    slot and hash tag of key
  route <verb> [args...]        routing decision for a command
  plan <verb> [args...]         per-node sub-commands for a command
  topology                      current slot map
  topology set [-merge] <file>  load slots from a YAML slot document
  topology clear                drop every range
  topology publish -zk servers [-path znode] [-session-timeout D] <file>
                                write a slot document to ZooKeeper
`

func main() {
	var (
		addr    = flag.String("addr", "http://localhost:8080", "routerd base URL")
		timeout = flag.Duration("timeout", 5*time.Second, "request timeout")
	)
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	out, err := run(ctx, client.New(*addr), args)
	if err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
	printJSON(out)
}

func run(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
	switch args[0] {
	case "slot":
		if len(args) != 2 {
			return nil, fmt.Errorf("expected exactly one key")
		}
		return c.Slot(ctx, args[1])

	case "route":
		if len(args) < 2 {
			return nil, fmt.Errorf("missing command")
		}
		return c.Route(ctx, args[1:]...)

	case "plan":
		if len(args) < 2 {
			return nil, fmt.Errorf("missing command")
		}
		return c.Plan(ctx, args[1:]...)

	case "topology":
		return runTopology(ctx, c, args[1:])

	default:
		return nil, fmt.Errorf("unknown command %q", args[0])
	}
}

func runTopology(ctx context.Context, c *client.Client, args []string) (interface{}, error) {
	if len(args) == 0 {
		return c.Topology(ctx)
	}

	switch args[0] {
	case "set":
		fs := flag.NewFlagSet("topology set", flag.ContinueOnError)
		merge := fs.Bool("merge", false, "upsert into the current slot map")
		if err := fs.Parse(args[1:]); err != nil {
			return nil, err
		}
		if fs.NArg() != 1 {
			return nil, fmt.Errorf("expected a slot document path")
		}

		slots, err := readSlots(fs.Arg(0))
		if err != nil {
			return nil, err
		}
		epoch, err := c.UpdateTopology(ctx, slots, *merge)
		return map[string]uint64{"epoch": epoch}, err

	case "clear":
		epoch, err := c.ClearTopology(ctx)
		return map[string]uint64{"epoch": epoch}, err

	case "publish":
		zkc := config.Default().Cluster.ZooKeeper
		fs := flag.NewFlagSet("topology publish", flag.ContinueOnError)
		servers := fs.String("zk", "", "comma-separated ZooKeeper servers")
		fs.StringVar(&zkc.Path, "path", zkc.Path, "znode holding the slot document")
		fs.DurationVar(&zkc.SessionTimeout, "session-timeout", zkc.SessionTimeout, "ZooKeeper session timeout")
		if err := fs.Parse(args[1:]); err != nil {
			return nil, err
		}
		if *servers == "" {
			return nil, fmt.Errorf("missing -zk servers")
		}
		if fs.NArg() != 1 {
			return nil, fmt.Errorf("expected a slot document path")
		}
		zkc.Servers = strings.Split(*servers, ",")

		slots, err := readSlots(fs.Arg(0))
		if err != nil {
			return nil, err
		}
		if err := publish(zkc, slots); err != nil {
			return nil, err
		}
		return map[string]interface{}{"path": zkc.Path, "ranges": len(slots)}, nil

	default:
		return nil, fmt.Errorf("unknown topology command %q", args[0])
	}
}

func readSlots(path string) ([]cluster.Slot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return cluster.DecodeSlots(data)
}

// publish writes slots to the znode every routerd watching zkc.Path reads.
func publish(zkc config.ZooKeeperConfig, slots []cluster.Slot) error {
	source, err := cluster.NewZKSource(zkc.Servers, zkc.Path, zkc.SessionTimeout)
	if err != nil {
		return err
	}
	defer source.Close()

	if err := source.WaitConnected(zkc.SessionTimeout); err != nil {
		return err
	}
	return source.Publish(slots)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode output: %v", err)
	}
}
