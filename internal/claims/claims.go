package claims

// Header is fixed: the lattice dialect supports exactly one algorithm, so
// the header is never marshaled through a generic map (map marshal order is
// not a contract we want to depend on) but emitted as this literal.
const jwtHeader = `{"typ":"jwt","alg":"Ed25519"}`

// MinModuleHashRevision is the minimum wascap_revision at which a
// component's module_hash is still verified against the artifact. Tokens
// below this revision decode and validate structurally, but callers MUST
// NOT trust their module_hash. See Open Questions in spec.md §9.
const MinModuleHashRevision = 3

// Claims is the body of a lattice JWT.
type Claims struct {
	Jti            string   `json:"jti"`
	Iat            int64    `json:"iat"`
	Iss            string   `json:"iss"`
	Sub            string   `json:"sub"`
	Exp            *int64   `json:"exp,omitempty"`
	Nbf            *int64   `json:"nbf,omitempty"`
	Wascap         *Wascap  `json:"wascap,omitempty"`
	WascapRevision *int     `json:"wascap_revision,omitempty"`
}

// Wascap holds the role-specific metadata. Exactly one of the embedded
// pointers is non-nil for a well-formed claim; Kind reports which.
type Wascap struct {
	Operator  *OperatorMetadata  `json:"operator,omitempty"`
	Account   *AccountMetadata   `json:"account,omitempty"`
	Host      *HostMetadata      `json:"host,omitempty"`
	Component *ComponentMetadata `json:"component,omitempty"`
	Provider  *ProviderMetadata  `json:"provider,omitempty"`
}

// Kind reports the role this Wascap payload describes, or "" if it carries
// no recognized role metadata.
func (w *Wascap) Kind() Role {
	switch {
	case w == nil:
		return ""
	case w.Operator != nil:
		return RoleOperator
	case w.Account != nil:
		return RoleAccount
	case w.Host != nil:
		return RoleHost
	case w.Component != nil:
		return RoleComponent
	case w.Provider != nil:
		return RoleProvider
	default:
		return ""
	}
}

// Role names the claim-minting role, one per §4.1.
type Role string

const (
	RoleOperator  Role = "operator"
	RoleAccount   Role = "account"
	RoleHost      Role = "host"
	RoleComponent Role = "component"
	RoleProvider  Role = "provider"
)

// OperatorMetadata describes an operator identity: the root of a trust
// chain, optionally delegating to additional signer keys.
type OperatorMetadata struct {
	Name           string   `json:"name"`
	AdditionalKeys []string `json:"additional_keys,omitempty"`
}

// AccountMetadata describes an account identity.
type AccountMetadata struct {
	Name           string   `json:"name"`
	AdditionalKeys []string `json:"additional_keys,omitempty"`
}

// HostMetadata describes a host (or cluster) identity.
type HostMetadata struct {
	Name           string   `json:"name"`
	AdditionalKeys []string `json:"additional_keys,omitempty"`
}

// ComponentMetadata describes a signed WebAssembly component.
type ComponentMetadata struct {
	Name       string            `json:"name"`
	ModuleHash string            `json:"hash"`
	Tags       []string          `json:"tags,omitempty"`
	Rev        *int              `json:"rev,omitempty"`
	Version    string            `json:"ver,omitempty"`
	CallAlias  string            `json:"call_alias,omitempty"`
}

// ProviderMetadata describes a signed capability provider.
type ProviderMetadata struct {
	Name          string            `json:"name"`
	Vendor        string            `json:"vendor"`
	Rev           *int              `json:"rev,omitempty"`
	Version       string            `json:"ver,omitempty"`
	TargetHashes  map[string]string `json:"target_hashes,omitempty"`
	ConfigSchema  map[string]any    `json:"config_schema,omitempty"`
}
