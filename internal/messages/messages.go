// Package messages holds the user-facing texts shown by the kiosk, in Korean
// and English.
package messages

import (
	"errors"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"gamechar/internal/domain"
)

// Message keys.
const (
	KeyStagingFailed     = "failure.staging"
	KeyAnalysisFailed    = "failure.analysis"
	KeySynthesisFailed   = "failure.synthesis"
	KeyCompositionFailed = "failure.composition"
	KeyInterrupted       = "failure.interrupted"
	KeyCleanupWarning    = "warning.cleanup"
	KeyJobInFlight       = "error.job_in_flight"
	KeyNoJob             = "error.no_job"
	KeyNotCompleted      = "error.not_completed"
	KeyUnavailable       = "error.delivery_unavailable"
	KeyDeliveryFailed    = "error.delivery_failed"
	KeyUnknownStyle      = "error.unknown_style"
	KeyEmptyImage        = "error.empty_image"
	KeyInvalidRequest    = "error.invalid_request"
	KeyInternal          = "error.internal"
	KeyEmailSent         = "delivery.email_sent"
	KeyDriveUploaded     = "delivery.drive_uploaded"
)

var supported = []language.Tag{language.English, language.Korean}

var matcher = language.NewMatcher(supported)

var entries = map[string][2]string{
	KeyStagingFailed:     {"사진을 임시로 업로드하지 못했습니다. 다시 시도해 주세요.", "The photo could not be uploaded for analysis. Please try again."},
	KeyAnalysisFailed:    {"사진을 분석하지 못했습니다. 다른 사진으로 시도해 주세요.", "The photo could not be analyzed. Please try a different photo."},
	KeySynthesisFailed:   {"캐릭터 이미지를 생성하지 못했습니다.", "The character image could not be generated."},
	KeyCompositionFailed: {"최종 이미지를 만들지 못했습니다.", "The final image could not be assembled."},
	KeyInterrupted:       {"서버가 재시작되어 작업이 중단되었습니다. 사진을 다시 제출해 주세요.", "The job was interrupted by a restart. Please submit the photo again."},
	KeyCleanupWarning:    {"임시 업로드 이미지를 삭제하지 못했습니다.", "The temporary upload could not be deleted."},
	KeyJobInFlight:       {"이미 진행 중인 작업이 있습니다. 완료될 때까지 기다려 주세요.", "A job is already in progress. Please wait for it to finish."},
	KeyNoJob:             {"진행 중인 작업이 없습니다.", "There is no job yet."},
	KeyNotCompleted:      {"이미지가 아직 완성되지 않았습니다.", "The image is not ready yet."},
	KeyUnavailable:       {"이 전송 방법은 현재 사용할 수 없습니다.", "This delivery option is not available."},
	KeyDeliveryFailed:    {"이미지를 전송하지 못했습니다. 다시 시도할 수 있습니다.", "The image could not be delivered. You can try again."},
	KeyUnknownStyle:      {"지원하지 않는 스타일입니다.", "That style is not supported."},
	KeyEmptyImage:        {"사진을 선택해 주세요.", "Please choose a photo."},
	KeyInvalidRequest:    {"요청이 올바르지 않습니다.", "The request is invalid."},
	KeyInternal:          {"알 수 없는 오류가 발생했습니다.", "Something went wrong."},
	KeyEmailSent:         {"이메일을 보냈습니다.", "The email has been sent."},
	KeyDriveUploaded:     {"드라이브에 업로드했습니다.", "The image has been uploaded to the drive."},
}

var cat = func() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, texts := range entries {
		_ = b.SetString(language.Korean, key, texts[0])
		_ = b.SetString(language.English, key, texts[1])
	}
	return b
}()

// Tag resolves a locale string such as "ko", "ko-KR" or "en-US" to one of
// the supported languages. Unmatched input falls back to English.
func Tag(locale string) language.Tag {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return language.English
	}
	_, idx := language.MatchStrings(matcher, locale)
	return supported[idx]
}

// Supported reports whether locale matches a catalog language with at least
// high confidence.
func Supported(locale string) bool {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return false
	}
	_, _, conf := matcher.Match(tag)
	return conf >= language.High
}

// Text returns the message for key in locale, or the key itself when unknown.
func Text(locale, key string) string {
	if _, ok := entries[key]; !ok {
		return key
	}
	return message.NewPrinter(Tag(locale), message.Catalog(cat)).Sprintf(key)
}

// FailureKey maps a job failure reason to its message key.
func FailureKey(reason domain.FailureReason) string {
	switch reason {
	case domain.FailureStaging:
		return KeyStagingFailed
	case domain.FailureAnalysis:
		return KeyAnalysisFailed
	case domain.FailureSynthesis:
		return KeySynthesisFailed
	case domain.FailureComposition:
		return KeyCompositionFailed
	case domain.FailureInterrupted:
		return KeyInterrupted
	default:
		return KeyInternal
	}
}

// ErrorKey maps an error returned by the pipeline to its message key.
func ErrorKey(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrJobInFlight):
		return KeyJobInFlight
	case errors.Is(err, domain.ErrNoJob):
		return KeyNoJob
	case errors.Is(err, domain.ErrNotCompleted):
		return KeyNotCompleted
	case errors.Is(err, domain.ErrDeliveryUnavailable):
		return KeyUnavailable
	case errors.Is(err, domain.ErrDelivery):
		return KeyDeliveryFailed
	case errors.Is(err, domain.ErrUnknownStyle):
		return KeyUnknownStyle
	case errors.Is(err, domain.ErrEmptyImage):
		return KeyEmptyImage
	case errors.Is(err, domain.ErrStaging):
		return KeyStagingFailed
	case errors.Is(err, domain.ErrAnalysis):
		return KeyAnalysisFailed
	case errors.Is(err, domain.ErrSynthesis):
		return KeySynthesisFailed
	case errors.Is(err, domain.ErrComposition):
		return KeyCompositionFailed
	default:
		return KeyInternal
	}
}

// Failure returns the localized explanation for a failed job.
func Failure(locale string, reason domain.FailureReason) string {
	return Text(locale, FailureKey(reason))
}

// Error returns the localized explanation for err.
func Error(locale string, err error) string {
	return Text(locale, ErrorKey(err))
}
