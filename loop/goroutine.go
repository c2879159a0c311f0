package loop

import "runtime"

// currentGoroutineID parses the numeric goroutine id out of runtime.Stack's
// header line, since Go intentionally has no public goroutine-id API.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
