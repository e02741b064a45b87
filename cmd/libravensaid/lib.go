package main

import (
	"os"
	"sync"

	"github.com/ravensaid/ravensaid/internal/config"
	"github.com/ravensaid/ravensaid/internal/inference"
	"github.com/ravensaid/ravensaid/internal/net"
	"k8s.io/klog/v2"
)

// ConfigEnv names a TOML config whose [network] table declares the topology of loaded checkpoints.
const ConfigEnv = "RAVENSAID_CONFIG"

var (
	registry = inference.NewRegistry()

	topologyOnce sync.Once
	topology     net.Topology
	topologyErr  error
)

func loadTopology() (net.Topology, error) {
	topologyOnce.Do(func() {
		topology = net.DefaultTopology()
		path := os.Getenv(ConfigEnv)
		if path == "" {
			return
		}
		cfg, err := config.Load(path)
		if err != nil {
			topologyErr = err
			return
		}
		topology = cfg.Network
	})
	return topology, topologyErr
}

// openHandle loads the checkpoint at path and returns its handle, or 0 on any error.
func openHandle(path string) uintptr {
	topo, err := loadTopology()
	if err != nil {
		klog.Errorf("ravensaid_init: %v", err)
		return 0
	}
	h, err := registry.Open(path, topo)
	if err != nil {
		klog.Errorf("ravensaid_init: %v", err)
		return 0
	}
	return uintptr(h)
}

func score(h uintptr, message string) int32 {
	return registry.Score(inference.Handle(h), message)
}

// freeHandle returns 0, or CodeInvalidHandle for a handle that is unknown or already freed.
func freeHandle(h uintptr) int32 {
	if err := registry.Free(inference.Handle(h)); err != nil {
		klog.V(1).Infof("ravensaid_free: %v", err)
		return inference.CodeInvalidHandle
	}
	return 0
}
