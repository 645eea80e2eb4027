package secrets

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/beaconbridge/beacon/internal/crypto"
)

// wireRecord is the JSON-on-disk shape of an encrypted record (§6.1): every byte field is base64. Legacy records
// omit algorithm (implies aes-256-gcm) and profile (implies pbkdf2_hmac_sha_1, flagged outdated on decrypt).
type wireRecord struct {
	Ciphertext string `json:"ciphertext"`
	Tag        string `json:"tag"`
	Nonce      string `json:"nonce"`
	Salt       string `json:"salt"`
	Algorithm  string `json:"algorithm,omitempty"`
	KDF        string `json:"kdf,omitempty"`
	Profile    string `json:"profile,omitempty"`
}

func (w wireRecord) toRecord() (*crypto.Record, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(w.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	tag, err := base64.StdEncoding.DecodeString(w.Tag)
	if err != nil {
		return nil, fmt.Errorf("decode tag: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(w.Nonce)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	salt, err := base64.StdEncoding.DecodeString(w.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}

	algorithm := crypto.Algorithm(w.Algorithm)
	if algorithm == "" {
		algorithm = crypto.AlgorithmAES256GCM
	}
	profile := crypto.Profile(w.Profile)
	if profile == "" {
		profile = crypto.ProfilePBKDF2HMACSHA1
	}
	kdf := crypto.KDF(w.KDF)
	if kdf == "" {
		kdf = crypto.KDFPBKDF2
	}

	return &crypto.Record{
		Ciphertext: ciphertext,
		Tag:        tag,
		Nonce:      nonce,
		Salt:       salt,
		Algorithm:  algorithm,
		KDF:        kdf,
		Profile:    profile,
	}, nil
}

func fromRecord(rec *crypto.Record) wireRecord {
	return wireRecord{
		Ciphertext: base64.StdEncoding.EncodeToString(rec.Ciphertext),
		Tag:        base64.StdEncoding.EncodeToString(rec.Tag),
		Nonce:      base64.StdEncoding.EncodeToString(rec.Nonce),
		Salt:       base64.StdEncoding.EncodeToString(rec.Salt),
		Algorithm:  string(rec.Algorithm),
		KDF:        string(rec.KDF),
		Profile:    string(rec.Profile),
	}
}

// document is the on-disk shape of both the secrets vault and a secure file: a flat map of name/id to encrypted
// record, marshaled as a single JSON object.
type document map[string]wireRecord

func decodeDocument(data []byte) (document, error) {
	if len(data) == 0 {
		return document{}, nil
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func encodeDocument(doc document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return data, nil
}
