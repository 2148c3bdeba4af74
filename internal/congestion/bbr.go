package congestion

import "time"

// BBR phases, mirroring the four states of Google's BBR v1: Startup
// probes for available bandwidth with a high gain,
// Drain sheds the queue Startup built up, ProbeBW cycles pacing gain
// around 1.0 to periodically test for more bandwidth, and ProbeRTT
// briefly shrinks the window to get an unqueued RTT sample.
type Phase uint8

const (
	PhaseStartup Phase = iota
	PhaseDrain
	PhaseProbeBW
	PhaseProbeRTT
)

func (p Phase) String() string {
	switch p {
	case PhaseStartup:
		return "Startup"
	case PhaseDrain:
		return "Drain"
	case PhaseProbeBW:
		return "ProbeBW"
	case PhaseProbeRTT:
		return "ProbeRTT"
	default:
		return "Unknown"
	}
}

const (
	bbrStartupGain   = 2.885 // 2/ln(2), the classic BBR startup pacing gain
	bbrDrainGain     = 1 / 2.885
	bbrMinWindow     = 4 * 1024
	bbrMaxWindow     = 8 * 1024 * 1024
	bbrInitialWindow = 32 * 1024
	bbrMinPacingRate = 1_000.0
	bbrMaxPacingRate = 400_000_000.0
	bbrProbeRTTInterval = 10 * time.Second
	bbrProbeRTTDuration = 200 * time.Millisecond
	bbrProbeBWCycleLen  = 8
)

var bbrProbeBWGains = [bbrProbeBWCycleLen]float64{1.25, 0.75, 1, 1, 1, 1, 1, 1}

// BBR is a bandwidth-and-RTT-probing congestion controller.
type BBR struct {
	phase Phase

	inflight int
	cwnd     int

	bwEst     float64 // best observed delivery rate, bytes/sec
	minRTT    time.Duration
	haveMinRTT bool

	roundStart      time.Time
	startupRoundsNoGrowth int
	lastBwEstAtStartupCheck float64

	probeBWCycleIndex int
	probeBWCycleStart time.Time

	probeRTTEnteredAt time.Time
	lastMinRTTSeenAt  time.Time
}

// NewBBR creates a BBR controller starting in Startup.
func NewBBR() *BBR {
	return &BBR{
		phase: PhaseStartup,
		cwnd:  bbrInitialWindow,
		bwEst: bbrMinPacingRate,
	}
}

func (b *BBR) OnSent(size int, now time.Time) {
	b.inflight += size
	if b.roundStart.IsZero() {
		b.roundStart = now
	}
}

func (b *BBR) OnDatagramSent(size int, now time.Time) {
	b.inflight += size
}

func (b *BBR) OnAck(acked []AckedPacket, rttSample time.Duration, hasRTTSample bool, now time.Time) {
	for _, p := range acked {
		b.inflight -= p.Size
		if b.inflight < 0 {
			b.inflight = 0
		}
	}

	if hasRTTSample {
		if !b.haveMinRTT || rttSample < b.minRTT {
			b.minRTT = rttSample
			b.haveMinRTT = true
			b.lastMinRTTSeenAt = now
		}

		var delivered int
		for _, p := range acked {
			delivered += p.Size
		}
		if delivered > 0 && rttSample > 0 {
			bw := float64(delivered) / rttSample.Seconds()
			if bw > b.bwEst {
				b.bwEst = bw
			}
		}
	}

	b.advancePhase(now)
	b.recompute()
}

func (b *BBR) OnLoss(lost []LostPacket, now time.Time) {
	for _, p := range lost {
		b.inflight -= p.Size
		if b.inflight < 0 {
			b.inflight = 0
		}
	}
	// BBR does not react to loss as a primary signal, but every loss
	// event still shrinks the window by 10% so a badly overestimated
	// bandwidth cannot keep saturating a lossy path.
	if len(lost) > 0 {
		b.cwnd = maxInt(bbrMinWindow, b.cwnd*9/10)
	}
}

func (b *BBR) Cwnd() int       { return b.cwnd }
func (b *BBR) InFlight() int   { return b.inflight }
func (b *BBR) PacingRate() float64 {
	gain := b.gainForPhase()
	rate := b.bwEst * gain
	if rate < bbrMinPacingRate {
		rate = bbrMinPacingRate
	}
	if rate > bbrMaxPacingRate {
		rate = bbrMaxPacingRate
	}
	return rate
}

func (b *BBR) Phase() Phase { return b.phase }

func (b *BBR) gainForPhase() float64 {
	switch b.phase {
	case PhaseStartup:
		return bbrStartupGain
	case PhaseDrain:
		return bbrDrainGain
	case PhaseProbeBW:
		return bbrProbeBWGains[b.probeBWCycleIndex]
	case PhaseProbeRTT:
		return 1.0
	default:
		return 1.0
	}
}

func (b *BBR) advancePhase(now time.Time) {
	switch b.phase {
	case PhaseStartup:
		if b.bwEst > b.lastBwEstAtStartupCheck*1.25 {
			b.startupRoundsNoGrowth = 0
		} else {
			b.startupRoundsNoGrowth++
		}
		b.lastBwEstAtStartupCheck = b.bwEst
		if b.startupRoundsNoGrowth >= 3 {
			b.phase = PhaseDrain
		}
	case PhaseDrain:
		target := b.bdp()
		if b.inflight <= target {
			b.phase = PhaseProbeBW
			b.probeBWCycleIndex = 0
			b.probeBWCycleStart = now
		}
	case PhaseProbeBW:
		if b.probeBWCycleStart.IsZero() {
			b.probeBWCycleStart = now
		}
		if now.Sub(b.probeBWCycleStart) >= b.probeBWCycleDuration() {
			b.probeBWCycleIndex = (b.probeBWCycleIndex + 1) % bbrProbeBWCycleLen
			b.probeBWCycleStart = now
		}
		if b.haveMinRTT && now.Sub(b.lastMinRTTSeenAt) >= bbrProbeRTTInterval {
			b.phase = PhaseProbeRTT
			b.probeRTTEnteredAt = now
		}
	case PhaseProbeRTT:
		if now.Sub(b.probeRTTEnteredAt) >= bbrProbeRTTDuration {
			b.phase = PhaseProbeBW
			b.probeBWCycleIndex = 0
			b.probeBWCycleStart = now
			b.lastMinRTTSeenAt = now
		}
	}
}

func (b *BBR) probeBWCycleDuration() time.Duration {
	if b.haveMinRTT && b.minRTT > 0 {
		return b.minRTT
	}
	return 25 * time.Millisecond
}

func (b *BBR) bdp() int {
	if !b.haveMinRTT || b.minRTT <= 0 {
		return bbrInitialWindow
	}
	bdp := int(b.bwEst * b.minRTT.Seconds())
	return clampInt(bdp, bbrMinWindow, bbrMaxWindow)
}

func (b *BBR) recompute() {
	switch b.phase {
	case PhaseProbeRTT:
		b.cwnd = bbrMinWindow
	default:
		target := int(float64(b.bdp()) * b.gainForPhase())
		b.cwnd = clampInt(target, bbrMinWindow, bbrMaxWindow)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
