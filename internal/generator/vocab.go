package generator

import "github.com/opensource-finance/welfareshield/internal/domain"

var (
	firstNames = []string{"Ramesh", "Suresh", "Lakshmi", "Geeta", "Vijay", "Anita", "Rajesh", "Kavitha", "Manoj", "Priya", "Sundar", "Meera", "Gopal", "Sunita", "Arun"}
	lastNames  = []string{"Kumar", "Singh", "Sharma", "Patel", "Reddy", "Rao", "Nair", "Menon", "Das", "Banerjee", "Ghosh", "Mukherjee", "Verma", "Gupta", "Joshi"}
	districts  = []string{"Patna", "Muzaffarpur", "Gaya", "Bhagalpur", "Lucknow", "Kanpur", "Varanasi", "Agra", "Mumbai", "Pune", "Nagpur", "Thane", "Hyderabad", "Vijayawada", "Bangalore", "Mysore"}
	blocks     = []string{"Block A", "Block B", "Block C", "Block D", "Block E"}
	villages   = []string{"Village Alpha", "Village Beta", "Village Gamma", "Village Delta", "Village Epsilon", "Village Zeta"}
	genders    = []string{"Male", "Female"}
)

// mildFactors are the low-signal tags given to beneficiaries that drew no
// tag at all, so every beneficiary explains its score.
var mildFactors = []string{
	domain.FactorMultipleSchemeUsage,
	domain.FactorUnusualAge,
	domain.FactorHighRegionalDensity,
	domain.FactorElderlyAgeSkew,
}

// Districts returns the district vocabulary.
func Districts() []string { return append([]string(nil), districts...) }

// Villages returns the village vocabulary.
func Villages() []string { return append([]string(nil), villages...) }

var regions = []domain.Region{
	{Code: "MH", Name: "Maharashtra", Center: domain.LatLng{Lat: 19.076, Lng: 72.8777}, RiskIndex: 62, AnomalyRate: 5.2, FlaggedCount: 340, BeneficiaryCount: 12500},
	{Code: "UP", Name: "Uttar Pradesh", Center: domain.LatLng{Lat: 26.8467, Lng: 80.9462}, RiskIndex: 78, AnomalyRate: 8.1, FlaggedCount: 890, BeneficiaryCount: 28500},
	{Code: "WB", Name: "West Bengal", Center: domain.LatLng{Lat: 22.5726, Lng: 88.3639}, RiskIndex: 55, AnomalyRate: 4.1, FlaggedCount: 210, BeneficiaryCount: 15200},
	{Code: "TN", Name: "Tamil Nadu", Center: domain.LatLng{Lat: 13.0827, Lng: 80.2707}, RiskIndex: 48, AnomalyRate: 3.2, FlaggedCount: 95, BeneficiaryCount: 11800},
	{Code: "KA", Name: "Karnataka", Center: domain.LatLng{Lat: 12.9716, Lng: 77.5946}, RiskIndex: 52, AnomalyRate: 3.8, FlaggedCount: 180, BeneficiaryCount: 10200},
	{Code: "GJ", Name: "Gujarat", Center: domain.LatLng{Lat: 23.0225, Lng: 72.5714}, RiskIndex: 45, AnomalyRate: 2.9, FlaggedCount: 75, BeneficiaryCount: 9800},
	{Code: "RJ", Name: "Rajasthan", Center: domain.LatLng{Lat: 26.9124, Lng: 75.7873}, RiskIndex: 71, AnomalyRate: 6.8, FlaggedCount: 420, BeneficiaryCount: 13200},
	{Code: "AP", Name: "Andhra Pradesh", Center: domain.LatLng{Lat: 17.385, Lng: 78.4867}, RiskIndex: 58, AnomalyRate: 4.5, FlaggedCount: 195, BeneficiaryCount: 11200},
	{Code: "MP", Name: "Madhya Pradesh", Center: domain.LatLng{Lat: 23.2599, Lng: 77.4126}, RiskIndex: 65, AnomalyRate: 5.6, FlaggedCount: 310, BeneficiaryCount: 14800},
	{Code: "BH", Name: "Bihar", Center: domain.LatLng{Lat: 25.0961, Lng: 85.3131}, RiskIndex: 82, AnomalyRate: 9.2, FlaggedCount: 720, BeneficiaryCount: 22000},
	{Code: "KL", Name: "Kerala", Center: domain.LatLng{Lat: 10.8505, Lng: 76.2711}, RiskIndex: 38, AnomalyRate: 2.1, FlaggedCount: 45, BeneficiaryCount: 8900},
	{Code: "OD", Name: "Odisha", Center: domain.LatLng{Lat: 20.2961, Lng: 85.8245}, RiskIndex: 68, AnomalyRate: 6.2, FlaggedCount: 270, BeneficiaryCount: 10500},
	{Code: "PB", Name: "Punjab", Center: domain.LatLng{Lat: 31.1471, Lng: 75.3412}, RiskIndex: 54, AnomalyRate: 4.0, FlaggedCount: 120, BeneficiaryCount: 7200},
	{Code: "HR", Name: "Haryana", Center: domain.LatLng{Lat: 28.7041, Lng: 77.1025}, RiskIndex: 49, AnomalyRate: 3.5, FlaggedCount: 88, BeneficiaryCount: 6500},
	{Code: "DL", Name: "Delhi", Center: domain.LatLng{Lat: 28.7041, Lng: 77.1025}, RiskIndex: 42, AnomalyRate: 2.8, FlaggedCount: 65, BeneficiaryCount: 4200},
}

// Regions returns a copy of the static region table.
func Regions() []domain.Region {
	return append([]domain.Region(nil), regions...)
}
