// Property-based tests for per-user locking.
package lock

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"pgregory.net/rapid"
)

// TestConcurrentCounterSafetyProperty checks that concurrent read-modify-write
// cycles on the same user under the lock match sequential execution.
func TestConcurrentCounterSafetyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(0, 100000).Draw(t, "initial")
		numOps := rapid.IntRange(2, 20).Draw(t, "numOps")
		userID := rapid.StringMatching(`[0-9]{1,12}`).Draw(t, "userID")

		amounts := make([]int64, numOps)
		expected := initial
		for i := range amounts {
			amounts[i] = rapid.Int64Range(0, 10000).Draw(t, "amount")
			expected += amounts[i]
		}

		ul := NewUserLock()
		balance := initial

		var wg sync.WaitGroup
		wg.Add(numOps)
		for _, amount := range amounts {
			go func(amount int64) {
				defer wg.Done()
				for !ul.TryLock(userID) {
					runtime.Gosched()
				}
				defer ul.Unlock(userID)
				balance += amount
			}(amount)
		}
		wg.Wait()

		if balance != expected {
			t.Fatalf("balance mismatch: expected %d, got %d", expected, balance)
		}
		if ul.Len() != 0 {
			t.Fatalf("expected all locks to be released, %d remain", ul.Len())
		}
	})
}

// TestMultipleUsersIndependentLocksProperty tests that locks for different users
// are independent.
func TestMultipleUsersIndependentLocksProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numUsers := rapid.IntRange(2, 10).Draw(t, "numUsers")

		ul := NewUserLock()
		for i := 0; i < numUsers; i++ {
			if !ul.TryLock(fmt.Sprintf("user-%d", i)) {
				t.Fatalf("user-%d should be lockable while other users hold locks", i)
			}
		}
		if ul.Len() != numUsers {
			t.Fatalf("expected %d held locks, got %d", numUsers, ul.Len())
		}
		for i := 0; i < numUsers; i++ {
			ul.Unlock(fmt.Sprintf("user-%d", i))
		}
		if ul.Len() != 0 {
			t.Fatalf("expected no held locks, got %d", ul.Len())
		}
	})
}

// TestTryLockPreventsConcurrentSessionsProperty tests that TryLock rejects a
// second session for a user while the first one is still running.
func TestTryLockPreventsConcurrentSessionsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.StringMatching(`[0-9]{1,12}`).Draw(t, "userID")
		numAttempts := rapid.IntRange(2, 20).Draw(t, "numAttempts")

		ul := NewUserLock()
		if !ul.TryLock(userID) {
			t.Fatal("first TryLock should succeed")
		}

		var rejected atomic.Int32
		var wg sync.WaitGroup
		wg.Add(numAttempts)
		for i := 0; i < numAttempts; i++ {
			go func() {
				defer wg.Done()
				if !ul.TryLock(userID) {
					rejected.Add(1)
				}
			}()
		}
		wg.Wait()

		if int(rejected.Load()) != numAttempts {
			t.Fatalf("expected %d rejected attempts, got %d", numAttempts, rejected.Load())
		}
		if ul.Len() != 1 {
			t.Fatalf("rejected attempts must not leak entries, got %d", ul.Len())
		}

		ul.Unlock(userID)
		if ul.Len() != 0 {
			t.Fatal("lock should be released after the session ends")
		}
	})
}

// TestLockUnlockSymmetryProperty tests that every TryLock has a corresponding Unlock.
func TestLockUnlockSymmetryProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.StringMatching(`[0-9]{1,12}`).Draw(t, "userID")
		numCycles := rapid.IntRange(1, 50).Draw(t, "numCycles")

		ul := NewUserLock()
		for i := 0; i < numCycles; i++ {
			if !ul.TryLock(userID) {
				t.Fatalf("cycle %d: lock should be free", i)
			}
			ul.Unlock(userID)
		}

		if !ul.TryLock(userID) {
			t.Fatal("Lock should be available after symmetric lock/unlock cycles")
		}
		ul.Unlock(userID)
	})
}

func TestUnlockUnknownUserIsNoop(t *testing.T) {
	ul := NewUserLock()
	ul.Unlock("nobody")
	if ul.Len() != 0 {
		t.Fatal("unknown user should not be locked")
	}
}
