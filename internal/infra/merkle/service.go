package merkle

import "github.com/ethereum/go-ethereum/common"

type Service struct{}

func (s *Service) VerifyProof(leaf, root common.Hash, proof []common.Hash) bool {
	return VerifyProof(leaf, root, proof)
}
