package processor

import "sync"

// AccountFilter is the cheap pre-filter run before any RPC lookup: a raw
// update is worth processing only if its account list intersects the tracked
// wallet set or the DEX program set. Membership is O(1) per account.
type AccountFilter struct {
	mu       sync.RWMutex
	wallets  map[string]struct{}
	programs map[string]struct{}
}

// NewAccountFilter creates a filter over the given wallets and DEX programs.
func NewAccountFilter(wallets, programs []string) *AccountFilter {
	f := &AccountFilter{
		wallets:  make(map[string]struct{}, len(wallets)),
		programs: make(map[string]struct{}, len(programs)),
	}
	for _, w := range wallets {
		f.wallets[w] = struct{}{}
	}
	for _, p := range programs {
		f.programs[p] = struct{}{}
	}
	return f
}

// Match returns the first tracked wallet present in accounts, and whether the
// update touches a known DEX program. A miss on both means skip.
func (f *AccountFilter) Match(accounts []string) (wallet string, dexProgram string, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, a := range accounts {
		if wallet == "" {
			if _, hit := f.wallets[a]; hit {
				wallet = a
			}
		}
		if dexProgram == "" {
			if _, hit := f.programs[a]; hit {
				dexProgram = a
			}
		}
	}
	return wallet, dexProgram, wallet != ""
}

// IsTracked reports whether a single address is a tracked wallet.
func (f *AccountFilter) IsTracked(address string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.wallets[address]
	return ok
}

// SetWallets replaces the tracked wallet set, used on resubscription.
func (f *AccountFilter) SetWallets(wallets []string) {
	next := make(map[string]struct{}, len(wallets))
	for _, w := range wallets {
		next[w] = struct{}{}
	}
	f.mu.Lock()
	f.wallets = next
	f.mu.Unlock()
}
