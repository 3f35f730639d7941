package model

// Credential is what a provider client needs to authenticate one call. Scope
// matters for Railway, where project tokens use a different header than
// workspace tokens.
type Credential struct {
	Token string
	Scope ScopeKind
}

// Credential returns the credential for the account's token.
func (a Account) Credential() Credential {
	return Credential{Token: a.Token, Scope: a.ScopeKind}
}
