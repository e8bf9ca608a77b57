// Package schedule provides the clock used by everything that paces work in
// time: the voice dispatch cadence, the connection heartbeat and playback
// settle delays.
//
// System is backed by the time package. FakeClock only moves when a test
// calls Advance, so cadence behaviour can be asserted without sleeping.
package schedule
