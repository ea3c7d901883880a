package service

import (
	"context"
	"sync"

	"github.com/technerv/election-monitor/pkg/domain"
	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
)

// numReportShards spreads per-report serialization over a fixed set of
// mutexes keyed by an FNV-1a hash of the report id.
const numReportShards = 128

type reportLocks struct {
	shards [numReportShards]sync.Mutex
}

// withReport runs fn while holding the shard for id. Two reports may share a
// shard; that only costs throughput.
func (l *reportLocks) withReport(ctx context.Context, id domain.ReportID, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transition aborted: context cancelled")
	}
	shard := &l.shards[hashReportID(id)%numReportShards]
	shard.Lock()
	defer shard.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transition aborted: context cancelled")
	}
	return fn()
}

func hashReportID(id domain.ReportID) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for _, b := range id {
		h ^= uint32(b)
		h *= fnvPrime
	}
	return h
}
