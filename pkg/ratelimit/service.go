package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/pkg/logger"
)

// Decision is the outcome of the three-tier admission check.
type Decision int

const (
	Admitted Decision = iota
	RejectedGlobal
	RejectedIP
	RejectedVisitor
	RejectedBanned
)

const globalKey = "global"

type Options struct {
	Window       time.Duration
	VisitorCap   int
	IPCap        int
	GlobalCap    int
	BanThreshold int
	BanDuration  time.Duration
	SweepEvery   time.Duration
}

// Service owns the three limiter tiers, the ban table and the periodic sweep.
// All state is in-memory; a restart fails open by design.
type Service struct {
	global  *Limiter
	ip      *Limiter
	visitor *Limiter
	bans    *BanList

	sweepEvery time.Duration
	log        logger.ILogger
	rdb        *redis.Client // optional rejection mirror for the ops dashboard
	stop       chan struct{}
}

func NewService(opts Options, log logger.ILogger, rdb *redis.Client) *Service {
	return &Service{
		global:     NewLimiter(opts.GlobalCap, opts.Window),
		ip:         NewLimiter(opts.IPCap, opts.Window),
		visitor:    NewLimiter(opts.VisitorCap, opts.Window),
		bans:       NewBanList(opts.BanThreshold, opts.BanDuration),
		sweepEvery: opts.SweepEvery,
		log:        log,
		rdb:        rdb,
		stop:       make(chan struct{}),
	}
}

// WithClock pushes a fake clock into every tier. Tests only.
func (s *Service) WithClock(now Clock) *Service {
	s.global.WithClock(now)
	s.ip.WithClock(now)
	s.visitor.WithClock(now)
	s.bans.WithClock(now)
	return s
}

// Check runs the tiers in order global, IP, visitor. Each rejection
// short-circuits; the ban table belongs to the IP tier, so global overload
// answers first even for a banned address.
func (s *Service) Check(visitorID, ip string) Decision {
	ipKey := HashIP(ip)

	if !s.global.Admit(globalKey) {
		s.mirror("global", globalKey)
		return RejectedGlobal
	}

	if s.bans.IsBanned(ipKey) {
		s.mirror("banned", ipKey)
		return RejectedBanned
	}

	if !s.ip.Admit(ipKey) {
		if s.bans.RecordViolation(ipKey) {
			s.log.Warn("ratelimit", "ip banned after repeated violations", map[string]interface{}{
				"ip_key": ipKey,
			})
		}
		s.mirror("ip", ipKey)
		return RejectedIP
	}

	if !s.visitor.Admit(visitorID) {
		s.mirror("visitor", visitorID)
		return RejectedVisitor
	}

	return Admitted
}

// Start launches the periodic sweep. Stop shuts it down.
func (s *Service) Start() {
	go func() {
		ticker := time.NewTicker(s.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.global.Sweep()
				s.ip.Sweep()
				s.visitor.Sweep()
				s.log.Debug("ratelimit", "sweep completed", map[string]interface{}{
					"ip_keys":      s.ip.Len(),
					"visitor_keys": s.visitor.Len(),
				})
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Service) Stop() {
	close(s.stop)
}

// mirror pushes a rejection event to Redis when configured. Fire-and-forget:
// failures are logged and never affect the admission decision.
func (s *Service) mirror(tier, key string) {
	if s.rdb == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		payload, _ := json.Marshal(map[string]interface{}{
			"tier": tier,
			"key":  key,
			"at":   time.Now().UTC(),
		})
		if err := s.rdb.LPush(ctx, "ratelimit:rejections", payload).Err(); err != nil {
			s.log.Warn("ratelimit", "failed to mirror rejection to redis", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()
}

// HashIP reduces a raw address to a short stable key so raw IPs are not kept
// in memory or logs.
func HashIP(ip string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ip))
	return fmt.Sprintf("ip-%08x", h.Sum32())
}
