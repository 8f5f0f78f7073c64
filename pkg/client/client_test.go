package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	api "slotrouter/internal/http"
	"slotrouter/pkg/cluster"
)

func startRouterd(t *testing.T) *Client {
	t.Helper()
	srv := httptest.NewServer(api.NewServer(cluster.NewTopology(), nil, "", 0).Handler())
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestClient_Roundtrip(t *testing.T) {
	ctx := context.Background()
	c := startRouterd(t)

	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health() error: %v", err)
	}

	s, err := c.Slot(ctx, "foo")
	if err != nil || s.Slot != 12182 {
		t.Fatalf("Slot(foo) = %+v, %v", s, err)
	}

	epoch, err := c.UpdateTopology(ctx, []cluster.Slot{
		{Start: 0, End: 8191, Master: "a:7000"},
		{Start: 8192, End: 16383, Master: "b:7001"},
	}, false)
	if err != nil || epoch != 1 {
		t.Fatalf("UpdateTopology() = %d, %v", epoch, err)
	}

	route, err := c.Route(ctx, "GET", "foo")
	if err != nil {
		t.Fatalf("Route() error: %v", err)
	}
	if route.Routing.Route == nil || route.Routing.Route.Address != "b:7001" {
		t.Fatalf("Route() = %+v", route.Routing)
	}

	plan, err := c.Plan(ctx, "MSET", "foo", "1", "bar", "2")
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(plan.Commands) != 2 {
		t.Fatalf("Plan() commands = %+v", plan.Commands)
	}

	route, err = c.RouteRESP(ctx, []byte(plan.Commands[1].Packed))
	if err != nil || route.Routing.Route == nil || route.Routing.Route.Slot != 5061 {
		t.Fatalf("RouteRESP() = %+v, %v", route.Routing, err)
	}

	merged, err := c.Combine(ctx, []string{"DEL", "foo", "bar"}, [][]byte{[]byte(":1\r\n"), []byte(":1\r\n")})
	if err != nil || merged.Reply != ":2\r\n" {
		t.Fatalf("Combine() = %+v, %v", merged, err)
	}

	topo, err := c.Topology(ctx)
	if err != nil || len(topo.Slots) != 2 {
		t.Fatalf("Topology() = %+v, %v", topo, err)
	}

	epoch, err = c.ClearTopology(ctx)
	if err != nil || epoch != 2 {
		t.Fatalf("ClearTopology() = %d, %v", epoch, err)
	}
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	c := startRouterd(t)

	_, err := c.Route(ctx, "SHUTDOWN")
	if !errors.Is(err, cluster.ErrUnroutable) {
		t.Fatalf("Route(SHUTDOWN) error = %v, want ErrUnroutable", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected APIError 422, got %v", err)
	}

	_, err = c.Plan(ctx, "GET", "foo")
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Plan on empty topology: got %v", err)
	}
	if apiErr.Message == "" {
		t.Fatal("APIError without message")
	}

	_, err = c.Combine(ctx, []string{"MSET"}, nil)
	if errors.Is(err, cluster.ErrUnroutable) {
		t.Fatalf("merge failure reported as unroutable: %v", err)
	}

	_, err = c.UpdateTopology(ctx, []cluster.Slot{{Start: 0, End: 1}}, false)
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid topology: got %v", err)
	}
}
