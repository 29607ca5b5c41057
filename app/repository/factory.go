package repository

import (
	"sync"

	"gorm.io/gorm"

	"github.com/artimagehub/ArtImageHub/internal/pkg/database"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{db: db}
}

// NewFactoryWithRepositories wires a factory around prebuilt repositories;
// used by tests.
func NewFactoryWithRepositories(repos *Repositories) *Factory {
	f := &Factory{repos: repos}
	f.once.Do(func() {})
	return f
}

// NewRepositories builds all repositories from one DB handle
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Task:         NewTaskRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Download:     NewDownloadRepository(db),
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetTaskRepository returns the task repository instance
func (f *Factory) GetTaskRepository() TaskRepository {
	return f.GetRepositories().Task
}

// GetSubscriptionRepository returns the subscription repository instance
func (f *Factory) GetSubscriptionRepository() SubscriptionRepository {
	return f.GetRepositories().Subscription
}

// GetDownloadRepository returns the download repository instance
func (f *Factory) GetDownloadRepository() DownloadRepository {
	return f.GetRepositories().Download
}

var (
	globalFactory     *Factory
	globalFactoryOnce sync.Once
	globalFactoryMu   sync.Mutex
)

// GetGlobalFactory returns the process-wide factory bound to the shared DB.
func GetGlobalFactory() *Factory {
	globalFactoryOnce.Do(func() {
		globalFactory = NewFactory(database.GetDB())
	})
	return globalFactory
}

// SetGlobalFactory replaces the global factory; used by tests.
func SetGlobalFactory(f *Factory) {
	globalFactoryMu.Lock()
	defer globalFactoryMu.Unlock()
	globalFactoryOnce.Do(func() {})
	globalFactory = f
}
