// internal/service/lottery/domain/rng.go
package domain

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// RandomSource 抽象随机数来源，便于测试注入可复现的种子序列
type RandomSource interface {
	// Int64N 返回 [0, n) 内的均匀随机数
	Int64N(n int64) int64
}

// cryptoRNG 默认随机源，基于 crypto/rand
// 拒绝采样保证 [0, n) 上严格均匀，直接取模会让小值档位轻微偏重
type cryptoRNG struct{}

func (cryptoRNG) Int64N(n int64) int64 {
	if n <= 0 {
		return 0
	}
	// [0, 2^63) 中能被 n 整除的最大前缀，落在外面的样本丢弃重抽
	bound := (uint64(1<<63) / uint64(n)) * uint64(n)
	for {
		var buf [8]byte
		if _, err := cryptoRand.Read(buf[:]); err != nil {
			// 熵源不可用时退回 math/rand/v2（自带拒绝采样）
			return rand.Int64N(n)
		}
		u := binary.BigEndian.Uint64(buf[:]) >> 1 // 去符号位
		if u < bound {
			return int64(u % uint64(n))
		}
	}
}

// DefaultRNG 返回默认的密码学随机源
func DefaultRNG() RandomSource { return cryptoRNG{} }

// seededRNG 可复现随机源（测试、蒙特卡洛模拟用）
type seededRNG struct{ r *rand.Rand }

// NewSeededRNG 以固定种子构造可复现随机源
func NewSeededRNG(seed uint64) RandomSource {
	return &seededRNG{r: rand.New(rand.NewPCG(seed, 0))}
}

func (s *seededRNG) Int64N(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return s.r.Int64N(n)
}
