package types

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`
	LogLevel        string `envconfig:"LOG_LEVEL" default:"info"`

	// Browser origins allowed to call the API. "*" allows any origin.
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"`

	// Storage: "postgres" or "memory"
	StoreDriver string `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Identity. JWKSURL wins over JWTSecret when both are set.
	JWTSecret       string `envconfig:"JWT_SECRET"`
	JWTIssuer       string `envconfig:"JWT_ISSUER" default:"feedchain"`
	JWKSURL         string `envconfig:"JWKS_URL"`
	TokenTTLMinutes int    `envconfig:"TOKEN_TTL_MINUTES" default:"10080"` // 7 days

	// Lifecycle
	MinExpiryLeadMinutes int     `envconfig:"MIN_EXPIRY_LEAD_MINUTES" default:"30"`
	NearbyRadiusKM       float64 `envconfig:"NEARBY_RADIUS_KM" default:"0"`
	PickupCodeLength     int     `envconfig:"PICKUP_CODE_LENGTH" default:"6"`

	// Proof-of-delivery images
	ProofBucket   string `envconfig:"PROOF_BUCKET"`
	ProofMaxBytes int64  `envconfig:"PROOF_MAX_BYTES" default:"5242880"` // 5 MiB
}
