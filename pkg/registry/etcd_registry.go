package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"manim-service/pkg/config"
	"manim-service/pkg/logger"
)

const keyPrefix = "/services/"

// ServiceKey is the etcd key of one registered instance.
func ServiceKey(serviceName, serviceID string) string {
	return fmt.Sprintf("%s%s/%s", keyPrefix, serviceName, serviceID)
}

// NewEtcdClient creates an etcd client from the etcd config section.
func NewEtcdClient(cfg config.EtcdConfig) (*clientv3.Client, error) {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return client, nil
}

// ServiceRegistry keeps this instance registered under a lease so workers
// can be discovered by delegating instances.
type ServiceRegistry struct {
	client      *clientv3.Client
	key         string
	serviceAddr string
	ttl         int64

	mu      sync.Mutex
	leaseID clientv3.LeaseID
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewServiceRegistry creates a registry. The client is owned by the caller.
func NewServiceRegistry(client *clientv3.Client, cfg config.ServiceRegistryConfig, serviceAddr string) *ServiceRegistry {
	ttl := int64(cfg.TTL.Seconds())
	if ttl <= 0 {
		ttl = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ServiceRegistry{
		client:      client,
		key:         ServiceKey(cfg.ServiceName, cfg.ServiceID),
		serviceAddr: serviceAddr,
		ttl:         ttl,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Register registers service instance.
func (r *ServiceRegistry) Register() error {
	leaseResp, err := r.client.Grant(r.ctx, r.ttl)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}
	r.mu.Lock()
	r.leaseID = leaseResp.ID
	r.mu.Unlock()

	if _, err := r.client.Put(r.ctx, r.key, r.serviceAddr, clientv3.WithLease(leaseResp.ID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	go r.keepAlive(leaseResp.ID)

	logger.Infof("Service registered: %s -> %s", r.key, r.serviceAddr)
	return nil
}

func (r *ServiceRegistry) keepAlive(leaseID clientv3.LeaseID) {
	ch, err := r.client.KeepAlive(r.ctx, leaseID)
	if err != nil {
		logger.Warnf("Failed to keep alive lease: %v", err)
		return
	}
	for {
		select {
		case <-r.ctx.Done():
			return
		case ka := <-ch:
			if ka == nil {
				logger.Warn("Keep alive channel closed", map[string]interface{}{"key": r.key})
				return
			}
		}
	}
}

// Deregister revokes the lease, which deletes the key.
func (r *ServiceRegistry) Deregister() error {
	r.cancel()
	r.mu.Lock()
	leaseID := r.leaseID
	r.mu.Unlock()
	if leaseID != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, err := r.client.Revoke(ctx, leaseID); err != nil {
			return fmt.Errorf("failed to revoke lease: %w", err)
		}
	}
	logger.Infof("Service deregistered: %s", r.key)
	return nil
}
