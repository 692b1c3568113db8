package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const otpRecordVersionV1 = 1

// MaxCodeLength is the longest code the record encoding accepts.
const MaxCodeLength = 64

// consumeOTPLua atomically performs GET→compare→DEL on an OTP record.
// KEYS[1] = record key
// ARGV[1] = provided code
//
// Returns:
//
//	record bytes on success
//	error string: "not_found", "mismatch"
var consumeOTPLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

-- version(1) createdAt(8 big-endian) codeLen(2 big-endian) code(codeLen)
local version = string.byte(data, 1)
if version ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local codeLen = string.byte(data, 10) * 256 + string.byte(data, 11)
local stored = string.sub(data, 12, 11 + codeLen)

if stored ~= ARGV[1] then
  return {err='mismatch'}
end

redis.call('DEL', KEYS[1])
return data
`)

// RedisOTPStore is the Redis-backed [OTPStore].
type RedisOTPStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisOTPStore(redisClient redis.UniversalClient, prefix string) *RedisOTPStore {
	if prefix == "" {
		prefix = "apo"
	}
	return &RedisOTPStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisOTPStore) key(phone, purpose string) string {
	return otpKey(s.prefix, phone, purpose)
}

func (s *RedisOTPStore) Replace(ctx context.Context, record *OTPRecord, ttl time.Duration) error {
	if record == nil {
		return errors.New("nil otp record")
	}
	encoded, err := encodeOTPRecord(record)
	if err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}

	key := s.key(record.Phone, record.Purpose)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.Set(ctx, key, encoded, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOTPBackend, err)
	}
	return nil
}

func (s *RedisOTPStore) Get(ctx context.Context, phone, purpose string) (*OTPRecord, error) {
	data, err := s.redis.Get(ctx, s.key(phone, purpose)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrOTPNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrOTPBackend, err)
	}

	record, err := decodeOTPRecord(data, phone, purpose)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOTPBackend, err)
	}
	return record, nil
}

func (s *RedisOTPStore) Consume(ctx context.Context, phone, purpose, code string) (*OTPRecord, error) {
	result, err := consumeOTPLua.Run(ctx, s.redis, []string{s.key(phone, purpose)}, code).Result()
	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrOTPNotFound
		case "mismatch":
			return nil, ErrOTPCodeMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrOTPBackend, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrOTPBackend)
	}

	record, err := decodeOTPRecord([]byte(data), phone, purpose)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOTPBackend, err)
	}

	// Lua string comparison is not constant-time.
	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
		return nil, ErrOTPCodeMismatch
	}
	return record, nil
}

func (s *RedisOTPStore) Delete(ctx context.Context, phone, purpose string) error {
	if err := s.redis.Del(ctx, s.key(phone, purpose)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTPBackend, err)
	}
	return nil
}

func encodeOTPRecord(record *OTPRecord) ([]byte, error) {
	if len(record.Code) > MaxCodeLength {
		return nil, errors.New("otp code too long")
	}

	var buf bytes.Buffer
	buf.Grow(11 + len(record.Code))

	buf.WriteByte(otpRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Code))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Code)

	return buf.Bytes(), nil
}

func decodeOTPRecord(data []byte, phone, purpose string) (*OTPRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != otpRecordVersionV1 {
		return nil, errors.New("invalid otp record version")
	}

	var createdAt int64
	if err := binary.Read(reader, binary.BigEndian, &createdAt); err != nil {
		return nil, err
	}

	var codeLen uint16
	if err := binary.Read(reader, binary.BigEndian, &codeLen); err != nil {
		return nil, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(reader, code); err != nil {
		return nil, err
	}

	return &OTPRecord{
		Phone:     phone,
		Purpose:   purpose,
		Code:      string(code),
		CreatedAt: time.Unix(0, createdAt).UTC(),
	}, nil
}
