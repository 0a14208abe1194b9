package worker

// Stats はプール全体の状態のスナップショット
type Stats struct {
	Size     int    `json:"size"`
	Live     int    `json:"live"`
	Busy     int    `json:"busy"`
	Queued   int    `json:"queued"`
	Executed uint64 `json:"executed"`
	Faults   int    `json:"faults"`
	State    string `json:"state"`
}

// WorkerInfo は個々のワーカーの状態
type WorkerInfo struct {
	ID       int    `json:"id"`
	Alive    bool   `json:"alive"`
	Busy     bool   `json:"busy"`
	Executed uint64 `json:"executed"`
	Fault    string `json:"fault,omitempty"`
}

// Stats は現在の統計を返す
func (p *Pool) Stats() Stats {
	stats := Stats{
		Size:   len(p.workers),
		Queued: p.receiver.Len(),
		State:  p.State().String(),
	}
	for _, info := range p.Workers() {
		if info.Alive {
			stats.Live++
		}
		if info.Busy {
			stats.Busy++
		}
		if info.Fault != "" {
			stats.Faults++
		}
		stats.Executed += info.Executed
	}
	return stats
}

// Workers は生成順のワーカー情報を返す
func (p *Pool) Workers() []WorkerInfo {
	infos := make([]WorkerInfo, 0, len(p.workers))
	for _, w := range p.workers {
		info := WorkerInfo{
			ID:       w.id,
			Alive:    w.Alive(),
			Busy:     w.Busy(),
			Executed: w.Executed(),
		}
		// fault is only safe to read once the goroutine has exited.
		if !info.Alive && w.fault != nil {
			info.Fault = w.fault.Error()
		}
		infos = append(infos, info)
	}
	return infos
}
