package inject

import (
	"time"

	"github.com/google/uuid"
)

// addBlockedCheck registers a suspended check and returns its completion
// handle. The handle is resolved later, from a different goroutine, by an
// unblock operation or by Close.
func (inj *Injector) addBlockedCheck(keyClass, keyValue string) <-chan error {
	bc := &blockedCheck{
		id:       uuid.New().String(),
		keyValue: keyValue,
		since:    time.Now(),
		done:     make(chan error, 1),
	}

	inj.mu.Lock()
	defer inj.mu.Unlock()

	inj.blocked[keyClass] = append(inj.blocked[keyClass], bc)

	if inj.metrics != nil {
		inj.metrics.SetBlocked(keyClass, len(inj.blocked[keyClass]))
	}

	return bc.done
}

// GetBlockedFaults returns the key values of the checks currently blocked
// in keyClass, in the order they were suspended.
func (inj *Injector) GetBlockedFaults(keyClass string) []string {
	inj.mu.RLock()
	defer inj.mu.RUnlock()

	list := inj.blocked[keyClass]
	values := make([]string, 0, len(list))
	for _, bc := range list {
		values = append(values, bc.keyValue)
	}
	return values
}

// ListBlocked returns a snapshot of the checks currently blocked in
// keyClass, including their IDs and suspension times.
func (inj *Injector) ListBlocked(keyClass string) []BlockedCall {
	inj.mu.RLock()
	defer inj.mu.RUnlock()

	list := inj.blocked[keyClass]
	calls := make([]BlockedCall, 0, len(list))
	for _, bc := range list {
		calls = append(calls, BlockedCall{
			ID:       bc.id,
			KeyValue: bc.keyValue,
			Since:    bc.since,
		})
	}
	return calls
}

// WaitUntilBlocked polls until at least one check is blocked in keyClass or
// timeout elapses, and reports whether one is blocked at exit.
//
// This is a fixed-interval busy-wait intended for test-harness
// synchronization only; do not use it on production latency paths.
func (inj *Injector) WaitUntilBlocked(keyClass string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) && len(inj.GetBlockedFaults(keyClass)) == 0 {
		time.Sleep(time.Millisecond)
	}
	return len(inj.GetBlockedFaults(keyClass)) != 0
}

// Unblock releases every blocked check in keyClass whose key value fully
// matches keyValueRegex, resolving each with success. It returns the number
// released. Checks that do not match stay pending in their original order.
func (inj *Injector) Unblock(keyClass, keyValueRegex string) (int, error) {
	inj.logger.Debug("unblock", "class", keyClass, "pattern", keyValueRegex)
	return inj.unblock(keyClass, keyValueRegex, nil)
}

// UnblockWithError releases every blocked check in keyClass whose key value
// fully matches keyValueRegex, resolving each with cause. It returns the
// number released.
func (inj *Injector) UnblockWithError(keyClass, keyValueRegex string, cause error) (int, error) {
	inj.logger.Debug("unblockWithError",
		"class", keyClass, "pattern", keyValueRegex, "cause", cause)
	return inj.unblock(keyClass, keyValueRegex, cause)
}

func (inj *Injector) unblock(keyClass, keyValueRegex string, cause error) (int, error) {
	matches, err := inj.extractBlockedChecks(keyClass, keyValueRegex)
	if err != nil {
		return 0, err
	}

	// Resolve outside the lock; the buffered handles never block.
	for _, bc := range matches {
		bc.done <- cause
	}

	if inj.metrics != nil && len(matches) > 0 {
		inj.metrics.RecordUnblocked(keyClass, cause == nil, len(matches))
	}

	return len(matches), nil
}

// UnblockAll releases every blocked check across all key classes with
// success and returns the total released.
func (inj *Injector) UnblockAll() int {
	inj.logger.Debug("unblockAll")
	return inj.unblockAllImpl(nil)
}

// UnblockAllWithError releases every blocked check across all key classes
// with cause and returns the total released.
func (inj *Injector) UnblockAllWithError(cause error) int {
	inj.logger.Debug("unblockAllWithError", "cause", cause)
	return inj.unblockAllImpl(cause)
}

// extractBlockedChecks removes and returns the blocked checks in keyClass
// whose key value fully matches keyValueRegex. Matching entries keep their
// relative order in the result; the remaining entries are compacted in
// place, preserving their order, and the class entry is pruned when
// emptied.
func (inj *Injector) extractBlockedChecks(keyClass, keyValueRegex string) ([]*blockedCheck, error) {
	re, err := compileFullMatch(keyValueRegex)
	if err != nil {
		return nil, err
	}

	inj.mu.Lock()
	defer inj.mu.Unlock()

	list, ok := inj.blocked[keyClass]
	if !ok {
		return nil, nil
	}

	var matches []*blockedCheck
	kept := list[:0]
	for _, bc := range list {
		if re.MatchString(bc.keyValue) {
			matches = append(matches, bc)
		} else {
			kept = append(kept, bc)
		}
	}

	if len(kept) == 0 {
		delete(inj.blocked, keyClass)
	} else {
		// Clear the tail so extracted entries are not retained by the
		// backing array.
		for i := len(kept); i < len(list); i++ {
			list[i] = nil
		}
		inj.blocked[keyClass] = kept
	}

	if inj.metrics != nil {
		inj.metrics.SetBlocked(keyClass, len(kept))
	}

	return matches, nil
}

// unblockAllImpl swaps the entire blocked-call mapping out under the lock,
// then resolves every extracted handle outside it.
func (inj *Injector) unblockAllImpl(cause error) int {
	inj.mu.Lock()
	extracted := inj.blocked
	inj.blocked = make(map[string][]*blockedCheck)
	inj.mu.Unlock()

	released := 0
	for keyClass, list := range extracted {
		for _, bc := range list {
			bc.done <- cause
		}
		released += len(list)

		if inj.metrics != nil {
			inj.metrics.SetBlocked(keyClass, 0)
			inj.metrics.RecordUnblocked(keyClass, cause == nil, len(list))
		}
	}
	return released
}
