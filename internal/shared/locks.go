package shared

import "fmt"

// ReconcileLockKey builds the redis key guarding a reconciliation run so
// that overlapping scheduled scans do not repair the same counters twice.
func ReconcileLockKey(job string) string {
	return fmt.Sprintf("ledger:reconcile:%s:lock", job)
}
