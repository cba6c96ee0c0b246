package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var timerList *Timer

// before compares wake times across counter wraparound
func before(a, b uint32) bool {
	return int32(a-b) < 0
}

// ScheduleTimer adds a timer to the schedule
func ScheduleTimer(t *Timer) {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	insertTimer(t)
}

// CancelTimer removes a timer from the schedule, if present
func CancelTimer(t *Timer) {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	if timerList == t {
		timerList = t.Next
		t.Next = nil
		return
	}
	for cur := timerList; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return
		}
	}
}

// insertTimer inserts a timer in sorted order by WakeTime
func insertTimer(t *Timer) {
	if timerList == nil || before(t.WakeTime, timerList.WakeTime) {
		t.Next = timerList
		timerList = t
		return
	}

	current := timerList
	for current.Next != nil && !before(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// popDue removes the first timer if it is due at now
func popDue(now uint32) *Timer {
	state := DisableInterrupts()
	defer RestoreInterrupts(state)

	if timerList == nil || before(now, timerList.WakeTime) {
		return nil
	}
	t := timerList
	timerList = t.Next
	t.Next = nil
	return t
}

// TimerDispatch runs due timers. Handlers run outside the critical section
// and may schedule other timers.
func TimerDispatch(now uint32) {
	for {
		timer := popDue(now)
		if timer == nil {
			return
		}
		if timer.Handler(timer) == SF_RESCHEDULE {
			ScheduleTimer(timer)
		}
	}
}

// heartbeat blinks the status LED
type heartbeat struct {
	timer  Timer
	pin    GPIOPin
	period uint32
	on     bool
}

var statusHeartbeat heartbeat

// StartHeartbeat toggles the status LED every periodMS milliseconds
func StartHeartbeat(pin GPIOPin, periodMS uint32) error {
	if err := MustGPIO().ConfigureOutput(pin); err != nil {
		return err
	}

	hb := &statusHeartbeat
	CancelTimer(&hb.timer)
	hb.pin = pin
	hb.period = TimerFromMS(periodMS)
	hb.timer.WakeTime = GetTime() + hb.period
	hb.timer.Handler = func(t *Timer) uint8 {
		hb.on = !hb.on
		_ = MustGPIO().SetPin(hb.pin, hb.on)
		t.WakeTime += hb.period
		return SF_RESCHEDULE
	}
	ScheduleTimer(&hb.timer)
	return nil
}
