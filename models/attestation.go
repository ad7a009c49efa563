package models

import "time"

// VerificationStatus summarizes the biometric outcome of an attestation.
type VerificationStatus string

const (
	StatusVerified          VerificationStatus = "verified"
	StatusFaceMismatch      VerificationStatus = "face_mismatch"
	StatusLivenessFailed    VerificationStatus = "liveness_failed"
	StatusStaticAttack      VerificationStatus = "static_attack_suspected"
)

// Biometrics is the biometric slice of a final Attestation.
type Biometrics struct {
	MatchScore         float64            `json:"match_score"`
	IsLive             bool               `json:"is_live"`
	LivenessScore      float64            `json:"liveness_score"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// PortraitAssets carries display-ready encodings of the document
// portrait crop alongside an attestation: a lossless thumbnail for
// audit records and a compact preview for quick display.
type PortraitAssets struct {
	ThumbnailPNGBase64 string `json:"thumbnail_png_base64,omitempty"`
	PreviewJPEGBase64  string `json:"preview_jpeg_base64,omitempty"`
}

// Attestation is the final structured record combining identity,
// document type, and biometric verdict.
type Attestation struct {
	Identity     MrzRecord      `json:"identity"`
	Biometrics   Biometrics     `json:"biometrics"`
	DocumentType DocumentType   `json:"document_type"`
	Timestamp    time.Time      `json:"timestamp"`
	Portrait     PortraitAssets `json:"portrait"`
}
