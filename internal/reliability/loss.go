package reliability

import (
	"time"

	"github.com/yafatek/mxp-protocol/internal/frame"
)

// LossConfig parameterizes the loss detector; the defaults follow
// QUIC's RFC 9002 recommendations.
type LossConfig struct {
	PacketThreshold           uint64
	TimeThresholdNumerator    uint32
	TimeThresholdDenominator  uint32
	InitialRTT                time.Duration
	MaxAckDelay               time.Duration
}

// DefaultLossConfig returns MXP's default loss-detection thresholds.
func DefaultLossConfig() LossConfig {
	return LossConfig{
		PacketThreshold:          3,
		TimeThresholdNumerator:   9,
		TimeThresholdDenominator: 8,
		InitialRTT:               333 * time.Millisecond,
		MaxAckDelay:              25 * time.Millisecond,
	}
}

// SentPacketInfo is what the loss detector retains about one
// outstanding packet.
type SentPacketInfo struct {
	PacketNumber uint64
	TimeSent     time.Time
	Size         int
	AckEliciting bool
}

// AckOutcome summarizes the effect of processing one inbound ACK
// frame: which outstanding packets it newly confirmed, which it
// revealed as lost, and the RTT sample it yielded, if any.
type AckOutcome struct {
	Acknowledged []SentPacketInfo
	Lost         []SentPacketInfo
	RTTSample    time.Duration
	HasSample    bool
}

// Manager tracks outstanding packets for one connection direction,
// maintaining the RTT estimate and loss timer that drive
// retransmission and congestion response.
type Manager struct {
	config LossConfig

	outstanding []SentPacketInfo
	largestAcked uint64
	haveLargestAcked bool

	latestRTT    time.Duration
	haveLatestRTT bool
	smoothedRTT  time.Duration
	rttVar       time.Duration
	haveRTTStats bool
	minRTT       time.Duration
	haveMinRTT   bool

	lossTime    time.Time
}

// NewManager creates a loss detector with the given configuration.
func NewManager(config LossConfig) *Manager {
	return &Manager{config: config}
}

// OnPacketSent records a packet just handed to the socket.
func (m *Manager) OnPacketSent(packetNumber uint64, timeSent time.Time, size int, ackEliciting bool) {
	m.outstanding = append(m.outstanding, SentPacketInfo{
		PacketNumber: packetNumber,
		TimeSent:     timeSent,
		Size:         size,
		AckEliciting: ackEliciting,
	})
	if ackEliciting && m.lossTime.IsZero() {
		m.lossTime = timeSent.Add(m.timeThreshold())
	}
}

// OnAckFrame processes an inbound ACK frame received at now.
func (m *Manager) OnAckFrame(ack frame.Ack, now time.Time) (AckOutcome, error) {
	var outcome AckOutcome

	ranges, err := decodeRanges(ack)
	if err != nil {
		return outcome, err
	}

	retained := m.outstanding[:0:0]
	var largestAckedInfo SentPacketInfo
	haveLargest := false

	for _, p := range m.outstanding {
		if rangesContain(ranges, p.PacketNumber) {
			outcome.Acknowledged = append(outcome.Acknowledged, p)
			if !haveLargest || p.PacketNumber > largestAckedInfo.PacketNumber {
				largestAckedInfo = p
				haveLargest = true
			}
		} else {
			retained = append(retained, p)
		}
	}
	m.outstanding = retained

	if haveLargest {
		m.largestAcked = largestAckedInfo.PacketNumber
		m.haveLargestAcked = true

		ackDelay := time.Duration(ack.AckDelay) * time.Microsecond
		if ackDelay > m.config.MaxAckDelay {
			ackDelay = m.config.MaxAckDelay
		}
		sample := now.Sub(largestAckedInfo.TimeSent)
		if sample > ackDelay {
			sample -= ackDelay
		}
		if sample > 0 {
			outcome.RTTSample = sample
			outcome.HasSample = true
			m.updateRTTEstimates(sample)
		}
	}

	outcome.Lost = append(outcome.Lost, m.detectLosses(ranges[0].End, now)...)

	m.recalculateLossTime(now)

	return outcome, nil
}

// LossTime reports when the loss timer should next fire, and whether
// one is armed at all.
func (m *Manager) LossTime() (time.Time, bool) {
	return m.lossTime, !m.lossTime.IsZero()
}

// OnLossTimeout applies time-threshold loss detection when the loss
// timer fires, returning packets newly declared lost.
func (m *Manager) OnLossTimeout(now time.Time) []SentPacketInfo {
	if m.lossTime.IsZero() || m.lossTime.After(now) {
		return nil
	}

	delay := m.timeThreshold()
	var lost []SentPacketInfo
	retained := m.outstanding[:0:0]

	for _, p := range m.outstanding {
		if !p.AckEliciting {
			retained = append(retained, p)
			continue
		}
		if now.Sub(p.TimeSent) >= delay {
			lost = append(lost, p)
		} else {
			retained = append(retained, p)
		}
	}
	m.outstanding = retained
	m.recalculateLossTime(now)
	return lost
}

// LatestRTT returns the most recent RTT sample, if any.
func (m *Manager) LatestRTT() (time.Duration, bool) { return m.latestRTT, m.haveLatestRTT }

// SmoothedRTT returns the exponentially smoothed RTT estimate.
func (m *Manager) SmoothedRTT() (time.Duration, bool) { return m.smoothedRTT, m.haveRTTStats }

// RTTVariance returns the RTT variance estimate.
func (m *Manager) RTTVariance() (time.Duration, bool) { return m.rttVar, m.haveRTTStats }

// Outstanding exposes the currently unacknowledged packets.
func (m *Manager) Outstanding() []SentPacketInfo { return m.outstanding }

func (m *Manager) updateRTTEstimates(latest time.Duration) {
	m.latestRTT = latest
	m.haveLatestRTT = true
	if !m.haveMinRTT || latest < m.minRTT {
		m.minRTT = latest
		m.haveMinRTT = true
	}

	if !m.haveRTTStats {
		m.smoothedRTT = latest
		m.rttVar = latest / 2
		m.haveRTTStats = true
		return
	}

	absErr := m.smoothedRTT - latest
	if absErr < 0 {
		absErr = -absErr
	}
	newVar := (3*m.rttVar + absErr) / 4
	newSRTT := (7*m.smoothedRTT + latest) / 8
	if newVar < time.Microsecond {
		newVar = time.Microsecond
	}
	if newSRTT < time.Microsecond {
		newSRTT = time.Microsecond
	}
	m.rttVar = newVar
	m.smoothedRTT = newSRTT
}

func (m *Manager) detectLosses(largestAcked uint64, now time.Time) []SentPacketInfo {
	var lost []SentPacketInfo
	retained := m.outstanding[:0:0]
	delay := m.timeThreshold()

	for _, p := range m.outstanding {
		if largestAcked >= p.PacketNumber && largestAcked-p.PacketNumber >= m.config.PacketThreshold {
			lost = append(lost, p)
			continue
		}
		if now.Sub(p.TimeSent) >= delay {
			lost = append(lost, p)
			continue
		}
		retained = append(retained, p)
	}
	m.outstanding = retained
	return lost
}

func (m *Manager) timeThreshold() time.Duration {
	base := m.config.InitialRTT
	if m.haveRTTStats {
		base = m.smoothedRTT
	}
	if m.haveLatestRTT && m.latestRTT > base {
		base = m.latestRTT
	}
	scaled := base * time.Duration(m.config.TimeThresholdNumerator) / time.Duration(m.config.TimeThresholdDenominator)
	if scaled < time.Millisecond {
		scaled = time.Millisecond
	}
	return scaled
}

func (m *Manager) recalculateLossTime(now time.Time) {
	m.lossTime = time.Time{}
	delay := m.timeThreshold()
	for _, p := range m.outstanding {
		if !p.AckEliciting {
			continue
		}
		candidate := p.TimeSent.Add(delay)
		if m.lossTime.IsZero() || candidate.Before(m.lossTime) {
			m.lossTime = candidate
		}
	}
	if !m.lossTime.IsZero() {
		return
	}
}
