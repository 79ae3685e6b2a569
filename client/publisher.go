package client

import (
	"log"
	"os"
	"sync"
	"time"

	"github.com/alifmusthofa354/FamilyTracking/proto"
)

// A Fix is one device position sample.
type Fix struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// A Profile names the local user in outgoing reports.
type Profile struct {
	ID         string
	Name       string
	AvatarPath string
}

// LocationProvider yields the most recent reported fix, or nil when no
// fix is available yet. It is pull-on-tick: the publisher never blocks
// waiting for a fresh sample.
type LocationProvider interface {
	LastFix() *Fix
}

// ProfileSource supplies the identity fields for outgoing reports.
type ProfileSource interface {
	Profile() Profile
}

// LocationCache persists the last good fix for warm-start display
// before the first live fix arrives.
type LocationCache interface {
	Put(fix Fix) error
	Last() (*Fix, error)
}

// Channel is where the publisher sends reports; satisfied by *Conn.
type Channel interface {
	Publish(entry proto.RosterEntry) error
}

// A Publisher samples the location provider on an interval and
// publishes each good fix. Nil fixes are skipped and never overwrite
// the current location. Stop is synchronous: once it returns, no
// further Publish call can start.
type Publisher struct {
	channel  Channel
	provider LocationProvider
	profile  ProfileSource
	cache    LocationCache
	logger   *log.Logger

	mu      sync.Mutex
	current *Fix
	stop    chan struct{}
	loopWG  sync.WaitGroup
}

func NewPublisher(channel Channel, provider LocationProvider, profile ProfileSource, cache LocationCache) *Publisher {
	return &Publisher{
		channel:  channel,
		provider: provider,
		profile:  profile,
		cache:    cache,
		logger:   log.New(os.Stdout, "[publisher] ", log.LstdFlags),
	}
}

// WarmStart seeds the current location from the cache, for display
// before the first live fix. No-op without a cache or cached fix.
func (p *Publisher) WarmStart() {
	if p.cache == nil {
		return
	}
	fix, err := p.cache.Last()
	if err != nil {
		p.logger.Printf("warm start: %s", err)
		return
	}
	if fix == nil {
		return
	}
	p.mu.Lock()
	if p.current == nil {
		p.current = fix
	}
	p.mu.Unlock()
}

// CurrentLocation returns the latest good fix, or the cached one after
// WarmStart, or nil.
func (p *Publisher) CurrentLocation() *Fix {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	fix := *p.current
	return &fix
}

// Start begins the sampling loop. Calling Start while running is a
// no-op.
func (p *Publisher) Start(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	stop := make(chan struct{})
	p.stop = stop
	p.loopWG.Add(1)
	go p.loop(interval, stop)
}

// Stop cancels the sampling loop and waits for an in-flight tick to
// finish. Safe to call repeatedly; no-op if not running.
func (p *Publisher) Stop() {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	p.loopWG.Wait()
}

func (p *Publisher) loop(interval time.Duration, stop chan struct{}) {
	defer p.loopWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *Publisher) tick() {
	fix := p.provider.LastFix()
	if fix == nil {
		// no fix this tick; keep the previous location
		return
	}

	p.mu.Lock()
	p.current = fix
	p.mu.Unlock()

	if p.cache != nil {
		if err := p.cache.Put(*fix); err != nil {
			p.logger.Printf("cache: %s", err)
		}
	}

	profile := p.profile.Profile()
	err := p.channel.Publish(proto.RosterEntry{
		ID:                 profile.ID,
		Name:               profile.Name,
		Lat:                fix.Lat,
		Lng:                fix.Lng,
		ProfilePicturePath: profile.AvatarPath,
	})
	if err != nil {
		// ErrNotConnected already nudged the transport's redial
		p.logger.Printf("publish: %s", err)
	}
}
