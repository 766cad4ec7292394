package registry

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"

	"manim-service/pkg/logger"
)

// ServiceDiscovery provides simple etcd-based service discovery.
type ServiceDiscovery struct {
	client   *clientv3.Client
	services map[string][]string
	mutex    sync.RWMutex
	next     atomic.Uint64
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewServiceDiscovery wraps a client owned by the caller.
func NewServiceDiscovery(client *clientv3.Client) *ServiceDiscovery {
	ctx, cancel := context.WithCancel(context.Background())
	return &ServiceDiscovery{
		client:   client,
		services: make(map[string][]string),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// DiscoverService fetches available instances from etcd and caches them.
func (sd *ServiceDiscovery) DiscoverService(ctx context.Context, serviceName string) ([]string, error) {
	resp, err := sd.client.Get(ctx, keyPrefix+serviceName+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to get service instances: %w", err)
	}

	addresses := make([]string, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		addresses = append(addresses, string(kv.Value))
	}

	sd.mutex.Lock()
	sd.services[serviceName] = addresses
	sd.mutex.Unlock()

	return addresses, nil
}

// GetService returns cached instances if available.
func (sd *ServiceDiscovery) GetService(serviceName string) []string {
	sd.mutex.RLock()
	defer sd.mutex.RUnlock()
	return sd.services[serviceName]
}

// WatchService keeps the cache of serviceName in sync with etcd.
func (sd *ServiceDiscovery) WatchService(serviceName string) {
	watchCh := sd.client.Watch(sd.ctx, keyPrefix+serviceName+"/", clientv3.WithPrefix())

	go func() {
		for {
			select {
			case <-sd.ctx.Done():
				return
			case resp, ok := <-watchCh:
				if !ok {
					return
				}
				for _, event := range resp.Events {
					switch event.Type {
					case clientv3.EventTypePut:
						logger.Infof("Service instance added: %s -> %s", string(event.Kv.Key), string(event.Kv.Value))
					case clientv3.EventTypeDelete:
						logger.Infof("Service instance removed: %s", string(event.Kv.Key))
					}
				}
				if _, err := sd.DiscoverService(sd.ctx, serviceName); err != nil {
					logger.Warnf("Failed to refresh service cache for %s: %v", serviceName, err)
				}
			}
		}
	}()
}

// GetServiceAddress returns one instance, round-robin.
func (sd *ServiceDiscovery) GetServiceAddress(ctx context.Context, serviceName string) (string, error) {
	addresses := sd.GetService(serviceName)
	if len(addresses) == 0 {
		var err error
		addresses, err = sd.DiscoverService(ctx, serviceName)
		if err != nil {
			return "", fmt.Errorf("failed to discover service %s: %w", serviceName, err)
		}
		if len(addresses) == 0 {
			return "", fmt.Errorf("no available instances for service %s", serviceName)
		}
	}
	idx := sd.next.Add(1) - 1
	return addresses[idx%uint64(len(addresses))], nil
}

// Close stops watchers. The client stays open.
func (sd *ServiceDiscovery) Close() {
	sd.cancel()
}

// ParseServiceAddress splits host:port formatted address.
func ParseServiceAddress(address string) (string, string, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", "", fmt.Errorf("invalid service address format: %s", address)
	}
	return host, port, nil
}
