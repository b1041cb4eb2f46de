package generator

// City is a known endpoint location.
type City struct {
	Name        string
	Country     string
	CountryCode string
	Lat         float64
	Lng         float64
}

// Cities is the location catalog synthetic traffic is drawn from.
var Cities = []City{
	{"New York", "United States", "US", 40.7128, -74.006},
	{"Los Angeles", "United States", "US", 34.0522, -118.2437},
	{"Chicago", "United States", "US", 41.8781, -87.6298},
	{"London", "United Kingdom", "GB", 51.5074, -0.1278},
	{"Paris", "France", "FR", 48.8566, 2.3522},
	{"Berlin", "Germany", "DE", 52.52, 13.405},
	{"Tokyo", "Japan", "JP", 35.6762, 139.6503},
	{"Seoul", "South Korea", "KR", 37.5665, 126.978},
	{"Beijing", "China", "CN", 39.9042, 116.4074},
	{"Shanghai", "China", "CN", 31.2304, 121.4737},
	{"Singapore", "Singapore", "SG", 1.3521, 103.8198},
	{"Sydney", "Australia", "AU", -33.8688, 151.2093},
	{"Mumbai", "India", "IN", 19.076, 72.8777},
	{"Dubai", "UAE", "AE", 25.2048, 55.2708},
	{"Moscow", "Russia", "RU", 55.7558, 37.6173},
	{"São Paulo", "Brazil", "BR", -23.5505, -46.6333},
	{"Toronto", "Canada", "CA", 43.6532, -79.3832},
	{"Amsterdam", "Netherlands", "NL", 52.3676, 4.9041},
	{"Stockholm", "Sweden", "SE", 59.3293, 18.0686},
	{"Frankfurt", "Germany", "DE", 50.1109, 8.6821},
	{"Hong Kong", "Hong Kong", "HK", 22.3193, 114.1694},
	{"Taipei", "Taiwan", "TW", 25.033, 121.5654},
	{"Jakarta", "Indonesia", "ID", -6.2088, 106.8456},
	{"Istanbul", "Turkey", "TR", 41.0082, 28.9784},
	{"Cape Town", "South Africa", "ZA", -33.9249, 18.4241},
	{"Mexico City", "Mexico", "MX", 19.4326, -99.1332},
	{"Buenos Aires", "Argentina", "AR", -34.6037, -58.3816},
	{"Warsaw", "Poland", "PL", 52.2297, 21.0122},
	{"Helsinki", "Finland", "FI", 60.1699, 24.9384},
	{"Johannesburg", "South Africa", "ZA", -26.2041, 28.0473},
	{"Bangkok", "Thailand", "TH", 13.7563, 100.5018},
	{"Kuala Lumpur", "Malaysia", "MY", 3.139, 101.6869},
}

// Protocols lists the protocols synthetic traffic uses.
var Protocols = []string{"TCP", "UDP", "ICMP", "HTTP", "HTTPS", "DNS", "SSH", "FTP", "SMTP", "TLS"}

// ProtocolPorts maps a protocol to its well-known port. A zero port means
// the generator picks an ephemeral one.
var ProtocolPorts = map[string]int{
	"HTTP":  80,
	"HTTPS": 443,
	"DNS":   53,
	"SSH":   22,
	"FTP":   21,
	"SMTP":  25,
	"TCP":   8080,
	"UDP":   5060,
	"ICMP":  0,
	"TLS":   443,
}

// ThreatTypes lists the threat classifications synthetic threats carry.
var ThreatTypes = []string{
	"DDoS Attack",
	"SQL Injection",
	"Port Scan",
	"Brute Force",
	"XSS Attack",
	"Man-in-the-Middle",
	"Malware C2",
	"Data Exfiltration",
	"Ransomware",
	"Zero-Day Exploit",
}
