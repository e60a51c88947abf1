package model

import (
	"strconv"
	"strings"
	"time"
)

// MaxDataEntrySize is the ledger limit for both data entry names and values.
const MaxDataEntrySize = 64

const keyTimeLayout = "20060102150405"

// Namespace is a known family of anchored pointers on the platform account.
type Namespace struct {
	Name    string
	Prefix  string
	Exclude []string
}

var (
	// NamespaceLegacyAttestations holds attestations written by earlier
	// deployments under the employees prefix.
	NamespaceLegacyAttestations = Namespace{Name: "legacy-attestations", Prefix: "employees_attestations_"}

	NamespaceEmployees    = Namespace{Name: "employees", Prefix: "employees_", Exclude: []string{NamespaceLegacyAttestations.Prefix}}
	NamespaceEmployers    = Namespace{Name: "employers", Prefix: "employers_"}
	NamespaceJobs         = Namespace{Name: "jobs", Prefix: "jobs_"}
	NamespaceWorkHistory  = Namespace{Name: "work-history", Prefix: "work_history_"}
	NamespaceAttestations = Namespace{Name: "attestations", Prefix: "attests_"}
)

// Namespaces lists every namespace the service reads or writes.
func Namespaces() []Namespace {
	return []Namespace{
		NamespaceEmployees,
		NamespaceEmployers,
		NamespaceJobs,
		NamespaceWorkHistory,
		NamespaceAttestations,
		NamespaceLegacyAttestations,
	}
}

// LookupNamespace finds a namespace by its name.
func LookupNamespace(name string) (Namespace, bool) {
	for _, ns := range Namespaces() {
		if ns.Name == name {
			return ns, true
		}
	}
	return Namespace{}, false
}

// Matches reports whether key belongs to the namespace.
func (n Namespace) Matches(key string) bool {
	return MatchesPrefix(key, n.Prefix, n.Exclude...)
}

// Key derives a data entry name. seq is the ledger sequence consumed by the
// write, which makes the key unique even within one wall-clock second.
func (n Namespace) Key(at time.Time, seq int64) (string, error) {
	key := n.Prefix + at.UTC().Format(keyTimeLayout) + "_" + strconv.FormatInt(seq, 10)
	if len(key) > MaxDataEntrySize {
		return "", ErrKeyTooLong
	}
	return key, nil
}

// MatchesPrefix reports whether key starts with prefix and with none of exclude.
func MatchesPrefix(key, prefix string, exclude ...string) bool {
	if !strings.HasPrefix(key, prefix) {
		return false
	}
	for _, ex := range exclude {
		if ex != "" && strings.HasPrefix(key, ex) {
			return false
		}
	}
	return true
}
