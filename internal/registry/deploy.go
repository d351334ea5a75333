package registry

import (
	"time"

	"github.com/sari-dev/sari/internal/types"
)

// BeginDeploy starts a blue/green upgrade: idle -> starting. It bumps
// the generation and returns it; callers must pass this generation to
// every subsequent transition so stale callers become no-ops per §4.6
// "mutations from a stale generation are no-ops".
func (r *Registry) BeginDeploy(candidateBootID string) (uint64, error) {
	var gen uint64
	err := r.Update(func(rec *types.RegistryRecord) error {
		if rec.Deployment.State != types.DeployIdle && rec.Deployment.State != "" {
			gen = rec.Deployment.Generation
			return nil
		}
		rec.Deployment.Generation++
		rec.Deployment.State = types.DeployStarting
		rec.Deployment.CandidateBootID = candidateBootID
		rec.Deployment.HealthFailStreak = 0
		rec.Deployment.RollbackReason = ""
		gen = rec.Deployment.Generation
		return nil
	})
	return gen, err
}

// MarkReady transitions starting -> ready once the candidate's health
// probe succeeds.
func (r *Registry) MarkReady(generation uint64) error {
	return r.Update(func(rec *types.RegistryRecord) error {
		d := &rec.Deployment
		if d.Generation != generation || d.State != types.DeployStarting {
			return nil
		}
		d.State = types.DeployReady
		return nil
	})
}

// SwitchActive transitions ready -> switched: the candidate becomes
// active, the previous active becomes old (and is expected to start
// draining), per §4.7 "switch_active on success".
func (r *Registry) SwitchActive(generation uint64) error {
	return r.Update(func(rec *types.RegistryRecord) error {
		d := &rec.Deployment
		if d.Generation != generation || d.State != types.DeployReady {
			return nil
		}
		d.OldBootID = d.ActiveBootID
		d.ActiveBootID = d.CandidateBootID
		d.CandidateBootID = ""
		d.State = types.DeploySwitched
		d.HealthFailStreak = 0
		d.SwitchTS = time.Now()
		return nil
	})
}

// RecordHealthFailure counts one post-switch health failure. Once the
// streak reaches strikeThreshold, it flips to rolling_back and
// restores active_boot_id from old_boot_id, per §4.7 "Rollback".
// Returns whether this call triggered the rollback.
func (r *Registry) RecordHealthFailure(generation uint64, strikeThreshold int) (bool, error) {
	rolledBack := false
	err := r.Update(func(rec *types.RegistryRecord) error {
		d := &rec.Deployment
		if d.Generation != generation || d.State != types.DeploySwitched {
			return nil
		}
		d.HealthFailStreak++
		if d.HealthFailStreak >= strikeThreshold {
			d.State = types.DeployRollingBack
			d.ActiveBootID = d.OldBootID
			d.RollbackReason = "health_check_failed"
			rolledBack = true
		}
		return nil
	})
	return rolledBack, err
}

// CompleteRollback transitions rolling_back -> idle once the candidate
// has been stopped.
func (r *Registry) CompleteRollback(generation uint64) error {
	return r.Update(func(rec *types.RegistryRecord) error {
		d := &rec.Deployment
		if d.Generation != generation || d.State != types.DeployRollingBack {
			return nil
		}
		d.State = types.DeployIdle
		d.CandidateBootID = ""
		d.OldBootID = ""
		return nil
	})
}

// FinishSwitch transitions switched -> idle once the old daemon has
// drained and stopped, settling the deployment for the next upgrade.
func (r *Registry) FinishSwitch(generation uint64) error {
	return r.Update(func(rec *types.RegistryRecord) error {
		d := &rec.Deployment
		if d.Generation != generation || d.State != types.DeploySwitched {
			return nil
		}
		d.State = types.DeployIdle
		d.OldBootID = ""
		return nil
	})
}
