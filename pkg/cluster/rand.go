package cluster

import "github.com/zhangyunhao116/fastrand"

// Rand picks replicas and random nodes. Tests inject a fixed one.
type Rand interface {
	Intn(n int) int
}

type fastRand struct{}

func (fastRand) Intn(n int) int {
	return fastrand.Intn(n)
}

func DefaultRand() Rand {
	return fastRand{}
}
