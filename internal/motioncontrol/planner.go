package motioncontrol

import "math"

// profile is a third-order (jerk-limited) point-to-point trajectory from
// rest to rest, covering an absolute distance under a peak velocity,
// acceleration and jerk cap.
//
// The planner assumes every point-to-point move starts and ends at rest.
// The orchestrator submits pattern moves only once the previous move has
// finished (move_in_progress == false); the retract target at a disable
// edge is submitted at once, and like an in-flight velocity cap change it
// makes the motion controller build a new profile from the current
// position as if starting at rest — see control.go.
type profile struct {
	distance float64 // total absolute distance, >= 0
	peakVel  float64
	amax     float64
	jmax     float64

	// cumulative phase boundary times t1..t7 and matching kinematic state
	// at each boundary, precomputed once so Evaluate is O(1).
	t  [8]float64 // t[0]=0 .. t[7]=total duration
	s  [8]float64
	v  [8]float64
	a  [8]float64
}

// Duration returns the total time to traverse the profile.
func (p *profile) Duration() float64 { return p.t[7] }

// newProfile derives a symmetric 7-phase S-curve profile for travelling
// distance (>=0) from rest to rest, capped at vmax, amax, jmax.
func newProfile(distance, vmax, amax, jmax float64) *profile {
	if distance <= 0 || vmax <= 0 || amax <= 0 || jmax <= 0 {
		return &profile{distance: math.Max(distance, 0)}
	}

	peak := vmax
	if 2*accelDistance(peak, amax, jmax) > distance {
		peak = solvePeakVelocity(distance, amax, jmax)
	}

	p := &profile{distance: distance, peakVel: peak, amax: amax, jmax: jmax}
	p.buildPhases()
	return p
}

// accelDistance and accelTime return the distance and time needed to
// accelerate from rest to v under the given acceleration/jerk caps.
func accelDistance(v, amax, jmax float64) float64 {
	if v <= 0 {
		return 0
	}
	vThresh := amax * amax / jmax
	if v <= vThresh {
		// triangular jerk profile: acceleration cap never reached.
		return v * math.Sqrt(v/jmax)
	}
	tj := amax / jmax
	v1 := 0.5 * amax * tj
	ta := (v - 2*v1) / amax
	s1 := amax * tj * tj / 6
	s2 := s1 + v1*ta + 0.5*amax*ta*ta
	v2 := v1 + amax*ta
	s3 := s2 + v2*tj + amax*tj*tj/3
	return s3
}

func accelTime(v, amax, jmax float64) float64 {
	if v <= 0 {
		return 0
	}
	vThresh := amax * amax / jmax
	if v <= vThresh {
		return 2 * math.Sqrt(v/jmax)
	}
	tj := amax / jmax
	v1 := 0.5 * amax * tj
	ta := (v - 2*v1) / amax
	return 2*tj + ta
}

// solvePeakVelocity finds, by bisection, the peak velocity for which a
// symmetric accelerate/decelerate profile (no cruise phase) covers exactly
// distance. accelDistance is continuous and monotonically increasing in v,
// so bisection converges unconditionally.
func solvePeakVelocity(distance, amax, jmax float64) float64 {
	lo, hi := 0.0, amax // expand hi until 2*accelDistance(hi) >= distance
	for 2*accelDistance(hi, amax, jmax) < distance {
		hi *= 2
		if hi > 1e9 {
			break
		}
	}
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2
		if 2*accelDistance(mid, amax, jmax) < distance {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// buildPhases precomputes the boundary times/positions/velocities/
// accelerations for the 7 (or 5, if amax is never reached) phases of the
// acceleration ramp, an optional cruise, and the mirrored deceleration ramp.
func (p *profile) buildPhases() {
	tj := p.amax / p.jmax
	vThresh := p.amax * p.amax / p.jmax

	var t1, t2, t3 float64 // end-times of jerk-up, const-accel, jerk-down (accel ramp)
	if p.peakVel <= vThresh {
		tau := math.Sqrt(p.peakVel / p.jmax)
		t1, t2, t3 = tau, tau, 2*tau
	} else {
		v1 := 0.5 * p.amax * tj
		ta := (p.peakVel - 2*v1) / p.amax
		t1, t2, t3 = tj, tj+ta, tj+ta+tj
	}

	accelDist := accelDistance(p.peakVel, p.amax, p.jmax)
	cruiseDist := p.distance - 2*accelDist
	if cruiseDist < 0 {
		cruiseDist = 0
	}
	cruiseDur := 0.0
	if p.peakVel > 0 {
		cruiseDur = cruiseDist / p.peakVel
	}

	// phase boundaries: 0=start,1=end jerk-up,2=end const-accel,
	// 3=end jerk-down (== end of accel ramp),4=end cruise,
	// 5=end jerk-up(decel),6=end const-decel,7=end jerk-down(decel)==total
	p.t[0] = 0
	p.t[1] = t1
	p.t[2] = t2
	p.t[3] = t3
	p.t[4] = t3 + cruiseDur
	p.t[5] = p.t[4] + t1
	p.t[6] = p.t[4] + t2
	p.t[7] = p.t[4] + t3

	p.s[0], p.v[0], p.a[0] = 0, 0, 0
	j := p.jmax

	// phase 1: jerk up
	p.v[1] = 0.5 * j * t1 * t1
	p.a[1] = j * t1
	p.s[1] = j * t1 * t1 * t1 / 6

	// phase 2: const accel (duration t2-t1)
	d2 := p.t[2] - p.t[1]
	p.a[2] = p.a[1]
	p.v[2] = p.v[1] + p.a[1]*d2
	p.s[2] = p.s[1] + p.v[1]*d2 + 0.5*p.a[1]*d2*d2

	// phase 3: jerk down to 0 accel, ends at peak velocity
	d3 := p.t[3] - p.t[2]
	p.v[3] = p.peakVel
	p.a[3] = 0
	p.s[3] = p.s[2] + p.v[2]*d3 + 0.5*p.a[2]*d3*d3 - j*d3*d3*d3/6

	// phase 4: cruise at peak velocity
	p.v[4] = p.peakVel
	p.a[4] = 0
	p.s[4] = p.s[3] + p.peakVel*cruiseDur

	// phases 5-7 mirror phases 1-3 in reverse (deceleration to rest).
	p.v[5] = p.peakVel - (p.v[1])
	p.a[5] = -p.a[1]
	p.s[5] = p.s[4] + p.peakVel*t1 - j*t1*t1*t1/6

	d6 := p.t[6] - p.t[5]
	p.a[6] = p.a[5]
	p.v[6] = p.v[5] + p.a[5]*d6
	p.s[6] = p.s[5] + p.v[5]*d6 + 0.5*p.a[5]*d6*d6

	p.v[7] = 0
	p.a[7] = 0
	p.s[7] = p.distance
}

// Evaluate returns (position, velocity, acceleration) at elapsed time t
// (clamped to [0, Duration()]), all along the direction of travel, with
// position measured from the start of the move.
func (p *profile) Evaluate(t float64) (pos, vel, acc float64) {
	if t <= 0 || p.distance <= 0 {
		return 0, 0, 0
	}
	if t >= p.t[7] {
		return p.distance, 0, 0
	}

	j := p.jmax
	switch {
	case t <= p.t[1]:
		dt := t
		return j * dt * dt * dt / 6, 0.5 * j * dt * dt, j * dt
	case t <= p.t[2]:
		dt := t - p.t[1]
		return p.s[1] + p.v[1]*dt + 0.5*p.a[1]*dt*dt, p.v[1] + p.a[1]*dt, p.a[1]
	case t <= p.t[3]:
		dt := t - p.t[2]
		return p.s[2] + p.v[2]*dt + 0.5*p.a[2]*dt*dt - j*dt*dt*dt/6,
			p.v[2] + p.a[2]*dt - 0.5*j*dt*dt,
			p.a[2] - j*dt
	case t <= p.t[4]:
		dt := t - p.t[3]
		return p.s[3] + p.peakVel*dt, p.peakVel, 0
	case t <= p.t[5]:
		dt := t - p.t[4]
		return p.s[4] + p.peakVel*dt - j*dt*dt*dt/6, p.peakVel - 0.5*j*dt*dt, -j * dt
	case t <= p.t[6]:
		dt := t - p.t[5]
		return p.s[5] + p.v[5]*dt + 0.5*p.a[5]*dt*dt, p.v[5] + p.a[5]*dt, p.a[5]
	default:
		dt := t - p.t[6]
		return p.s[6] + p.v[6]*dt + 0.5*p.a[6]*dt*dt + j*dt*dt*dt/6,
			p.v[6] + p.a[6]*dt + 0.5*j*dt*dt,
			p.a[6] + j*dt
	}
}
