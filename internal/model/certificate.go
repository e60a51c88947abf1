package model

// CertificateAssetCode is the asset code of every completion certificate.
const CertificateAssetCode = "CHM"

// Certificate is the outcome of a successful mint. DistributorSecret lets the
// worker claim the token and is never anchored.
type Certificate struct {
	TransactionHash      string `json:"transactionHash"`
	AssetCode            string `json:"assetCode"`
	AssetIssuer          string `json:"assetIssuer"`
	DistributorPublicKey string `json:"distributorPublicKey"`
	DistributorSecret    string `json:"distributorSecret"`
	DestinationPK        string `json:"destinationPk"`
}

// Ref drops the secret so the certificate can be stored publicly.
func (c Certificate) Ref() *CertificateRef {
	return &CertificateRef{
		TransactionHash:      c.TransactionHash,
		AssetCode:            c.AssetCode,
		AssetIssuer:          c.AssetIssuer,
		DistributorPublicKey: c.DistributorPublicKey,
		DestinationPK:        c.DestinationPK,
	}
}

// CertificateRef is the public part of a Certificate.
type CertificateRef struct {
	TransactionHash      string `json:"transactionHash"`
	AssetCode            string `json:"assetCode"`
	AssetIssuer          string `json:"assetIssuer"`
	DistributorPublicKey string `json:"distributorPublicKey"`
	DestinationPK        string `json:"destinationPk"`
}

// NFT is a single-unit token balance held by an account.
type NFT struct {
	AssetType string `json:"asset_type"`
	Balance   string `json:"balance"`
	AssetCode string `json:"asset_code"`
}
