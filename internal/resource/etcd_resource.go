package resource

import (
	"sync"

	clientv3 "go.etcd.io/etcd/client/v3"

	"manim-service/pkg/assert"
	"manim-service/pkg/config"
	"manim-service/pkg/logger"
	"manim-service/pkg/manager"
	"manim-service/pkg/registry"
)

var (
	etcdResourceOnce sync.Once
	etcdSingleton    *EtcdResource
)

// EtcdResource is the shared etcd client for registration and discovery.
type EtcdResource struct {
	client *clientv3.Client
}

func DefaultEtcdResource() *EtcdResource {
	assert.NotCircular()
	etcdResourceOnce.Do(func() {
		etcdSingleton = &EtcdResource{}
	})
	assert.NotNil(etcdSingleton)
	return etcdSingleton
}

func (r *EtcdResource) MustOpen() {
	if r.client != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before EtcdResource")
	}
	client, err := registry.NewEtcdClient(cfg.Etcd)
	if err != nil {
		panic(err.Error())
	}
	r.client = client
	logger.Infof("Etcd resource initialized endpoints=%v", cfg.Etcd.Endpoints)
}

// Client returns the etcd client, nil before MustOpen.
func (r *EtcdResource) Client() *clientv3.Client {
	return r.client
}

func (r *EtcdResource) Close() {
	if r.client != nil {
		_ = r.client.Close()
	}
}

type EtcdResourcePlugin struct{}

func (p *EtcdResourcePlugin) Name() string { return "etcdResource" }

// Enabled when this instance registers itself or discovers workers.
func (p *EtcdResourcePlugin) Enabled(cfg *config.Config) bool {
	return cfg != nil && (cfg.ServiceRegistry.Enabled || cfg.Runner.Discovery.Enabled)
}

func (p *EtcdResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultEtcdResource()
}
