// Package wallet 实现签名服务本体: 创建/导入钱包、加密落盘、
// 查余额、预构建交易、签名并广播、签消息与 EIP-712 类型化数据。
// RPC 不可达时自动降级为模拟模式，交易不上链但签名路径完整。
package wallet

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sunbyte-wallet/internal/model"
	"sunbyte-wallet/internal/service/mq"
	"sunbyte-wallet/internal/signing"
	"sunbyte-wallet/pkg/bip32"
	"sunbyte-wallet/pkg/bip39"
	"sunbyte-wallet/pkg/crypto_util"
	"sunbyte-wallet/pkg/errno"
	"sunbyte-wallet/pkg/keystore"
	"sunbyte-wallet/pkg/logger"
	"sunbyte-wallet/pkg/monitor"

	"github.com/btcsuite/btcd/chaincfg"
)

const (
	defaultGasLimit = uint64(21000)
	minPasswordLen  = 8
)

// 20 gwei，模拟模式的固定 gas 价格
var defaultGasPrice = big.NewInt(20_000_000_000)

// Event MQ 广播的钱包事件
type Event struct {
	Type    string    `json:"type"` // wallet.created, wallet.imported, tx.broadcast
	Address string    `json:"address"`
	TxHash  string    `json:"txHash,omitempty"`
	At      time.Time `json:"at"`
}

type Service struct {
	db          *gorm.DB
	keystoreDir string
	ethClient   *ethclient.Client // nil 表示模拟模式
	chainID     *big.Int
	producer    mq.Producer
	mnemonics   *bip39.MnemonicService
}

func NewService(db *gorm.DB, keystoreDir, rpcURL string, chainID int64, producer mq.Producer) *Service {
	var client *ethclient.Client
	if rpcURL != "" {
		c, err := ethclient.Dial(rpcURL)
		if err != nil {
			logger.Warn("[Wallet] RPC 无法连接，将运行在模拟模式", zap.String("rpc", rpcURL), zap.Error(err))
		} else {
			client = c
		}
	} else {
		logger.Warn("[Wallet] 未配置 RPC，将运行在模拟模式")
	}
	if producer == nil {
		producer = mq.NopProducer{}
	}

	return &Service{
		db:          db,
		keystoreDir: keystoreDir,
		ethClient:   client,
		chainID:     big.NewInt(chainID),
		producer:    producer,
		mnemonics:   bip39.NewMnemonicService(),
	}
}

// Simulated 报告是否运行在模拟模式 (无真实链连接)
func (s *Service) Simulated() bool {
	return s.ethClient == nil
}

// Create 生成助记词、派生以太坊密钥并加密落盘。
// 助记词只在这一次返回，服务端不存明文。
func (s *Service) Create(ctx context.Context, password string) (*signing.CreateResult, error) {
	if len(password) < minPasswordLen {
		return nil, errno.ErrPasswordTooShort
	}

	mnemonic, err := s.mnemonics.GenerateMnemonic(128)
	if err != nil {
		return nil, errno.InternalServerError
	}

	address, privHex, err := s.deriveFromMnemonic(mnemonic)
	if err != nil {
		return nil, err
	}
	if err := s.saveWallet(ctx, address, privHex, password, "created"); err != nil {
		return nil, err
	}

	if monitor.Business != nil {
		monitor.Business.WalletCreatedTotal.Inc()
	}
	s.publish(ctx, Event{Type: "wallet.created", Address: address, At: time.Now()})
	logger.Info("[Wallet] 钱包创建成功 ✅", zap.String("address", address))

	return &signing.CreateResult{Address: address, Mnemonic: mnemonic}, nil
}

// ImportMnemonic 从助记词恢复钱包
func (s *Service) ImportMnemonic(ctx context.Context, mnemonic, password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", errno.ErrPasswordTooShort
	}
	if !s.mnemonics.ValidateMnemonic(mnemonic) {
		return "", errno.ErrInvalidMnemonic
	}

	address, privHex, err := s.deriveFromMnemonic(mnemonic)
	if err != nil {
		return "", err
	}
	if err := s.saveWallet(ctx, address, privHex, password, "mnemonic"); err != nil {
		return "", err
	}

	s.publish(ctx, Event{Type: "wallet.imported", Address: address, At: time.Now()})
	return address, nil
}

// ImportPrivateKey 直接导入私钥
func (s *Service) ImportPrivateKey(ctx context.Context, privateKeyHex, password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", errno.ErrPasswordTooShort
	}

	privHex := strings.TrimPrefix(privateKeyHex, "0x")
	priv, err := crypto.HexToECDSA(privHex)
	if err != nil {
		return "", errno.ErrBind.WithMessage("A valid private key is required")
	}

	address := crypto.PubkeyToAddress(priv.PublicKey).Hex()
	if err := s.saveWallet(ctx, address, privHex, password, "private_key"); err != nil {
		return "", err
	}

	s.publish(ctx, Event{Type: "wallet.imported", Address: address, At: time.Now()})
	return address, nil
}

// Balance 查询余额，返回 ETH 十进制字符串。
// 模拟模式返回固定演示余额。
func (s *Service) Balance(ctx context.Context, address string) (string, error) {
	w, err := s.findWallet(ctx, address)
	if err != nil {
		return "", err
	}

	if s.ethClient == nil {
		return "100", nil
	}

	wei, err := s.ethClient.BalanceAt(ctx, common.HexToAddress(w.Address), nil)
	if err != nil {
		logger.Error("[Wallet] 余额查询失败", zap.String("address", address), zap.Error(err))
		s.countError("balance")
		return "", errno.ErrUpstreamFailure.WithMessage("Failed to fetch balance")
	}
	return decimal.NewFromBigInt(wei, -18).String(), nil
}

// PrepareTransaction 预构建未签名交易
func (s *Service) PrepareTransaction(ctx context.Context, fromAddress, toAddress, amount string) (*signing.UnsignedTx, error) {
	if _, err := s.findWallet(ctx, fromAddress); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(toAddress) {
		return nil, errno.ErrInvalidAddress
	}

	amountDec, err := decimal.NewFromString(amount)
	if err != nil || amountDec.Sign() <= 0 {
		return nil, errno.ErrBind.WithMessage("amount must be a positive decimal")
	}
	wei := amountDec.Mul(decimal.New(1, 18)).BigInt()

	nonce := uint64(1)
	gasPrice := defaultGasPrice
	if s.ethClient != nil {
		if n, err := s.ethClient.PendingNonceAt(ctx, common.HexToAddress(fromAddress)); err == nil {
			nonce = n
		}
		if gp, err := s.ethClient.SuggestGasPrice(ctx); err == nil {
			gasPrice = gp
		}
	}

	return &signing.UnsignedTx{
		From:     fromAddress,
		To:       common.HexToAddress(toAddress).Hex(),
		Value:    hexutil.EncodeBig(wei),
		Gas:      hexutil.EncodeUint64(defaultGasLimit),
		GasPrice: hexutil.EncodeBig(gasPrice),
		Nonce:    hexutil.EncodeUint64(nonce),
		ChainID:  hexutil.EncodeBig(s.chainID),
	}, nil
}

// SignAndBroadcast 解密私钥、EIP-155 签名并广播。
// 模拟模式不广播，直接用签名后交易的哈希作为 txHash。
func (s *Service) SignAndBroadcast(ctx context.Context, fromAddress, password string, unsigned *signing.UnsignedTx) (*signing.BroadcastResult, error) {
	priv, err := s.loadPrivateKey(ctx, fromAddress, password)
	if err != nil {
		return nil, err
	}

	nonce, err := hexutil.DecodeUint64(defaultHex(unsigned.Nonce, "0x1"))
	if err != nil {
		return nil, errno.ErrBind.WithMessage("Invalid transaction nonce")
	}
	gas, err := hexutil.DecodeUint64(defaultHex(unsigned.Gas, "0x5208"))
	if err != nil {
		return nil, errno.ErrBind.WithMessage("Invalid transaction gas")
	}
	value, err := hexutil.DecodeBig(defaultHex(unsigned.Value, "0x0"))
	if err != nil {
		return nil, errno.ErrBind.WithMessage("Invalid transaction value")
	}
	gasPrice, err := hexutil.DecodeBig(defaultHex(unsigned.GasPrice, hexutil.EncodeBig(defaultGasPrice)))
	if err != nil {
		return nil, errno.ErrBind.WithMessage("Invalid transaction gasPrice")
	}
	if !common.IsHexAddress(unsigned.To) {
		return nil, errno.ErrInvalidAddress
	}
	to := common.HexToAddress(unsigned.To)

	var data []byte
	if unsigned.Data != "" {
		if data, err = hexutil.Decode(unsigned.Data); err != nil {
			return nil, errno.ErrBind.WithMessage("Invalid transaction data")
		}
	}

	tx := types.NewTransaction(nonce, to, value, gas, gasPrice, data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(s.chainID), priv)
	if err != nil {
		s.countError("sign-and-broadcast")
		return nil, errno.InternalServerError
	}

	result := &signing.BroadcastResult{TxHash: signedTx.Hash().Hex()}
	status := "simulated"

	if s.ethClient != nil {
		if err := s.ethClient.SendTransaction(ctx, signedTx); err != nil {
			s.countError("sign-and-broadcast")
			if strings.Contains(err.Error(), "insufficient funds") {
				return nil, errno.ErrInsufficientFunds
			}
			return nil, errno.ErrUpstreamFailure.WithMessage("Broadcast failed: " + err.Error())
		}
		if bn, err := s.ethClient.BlockNumber(ctx); err == nil {
			result.BlockNumber = bn
		}
		status = "broadcast"
	}

	s.logTransaction(ctx, fromAddress, unsigned, result, status)
	if monitor.Business != nil {
		monitor.Business.BroadcastSuccessTotal.WithLabelValues(s.chainID.String()).Inc()
	}
	s.publish(ctx, Event{Type: "tx.broadcast", Address: fromAddress, TxHash: result.TxHash, At: time.Now()})
	logger.Info("[Wallet] 交易已签名广播", zap.String("txHash", result.TxHash), zap.String("status", status))

	return result, nil
}

// SignMessage EIP-191 personal_sign
func (s *Service) SignMessage(ctx context.Context, fromAddress, password, message string) (string, error) {
	priv, err := s.loadPrivateKey(ctx, fromAddress, password)
	if err != nil {
		return "", err
	}

	msgBytes := []byte(message)
	// 页面可能传 0x 编码的消息字节
	if strings.HasPrefix(message, "0x") {
		if decoded, err := hexutil.Decode(message); err == nil {
			msgBytes = decoded
		}
	}

	sig, err := crypto.Sign(accounts.TextHash(msgBytes), priv)
	if err != nil {
		s.countError("sign-message")
		return "", errno.InternalServerError
	}
	sig[64] += 27 // recovery id 按以太坊惯例偏移
	return hexutil.Encode(sig), nil
}

// SignTypedData EIP-712 类型化数据签名
func (s *Service) SignTypedData(ctx context.Context, fromAddress, password string, typedData interface{}) (string, error) {
	priv, err := s.loadPrivateKey(ctx, fromAddress, password)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(typedData)
	if err != nil {
		return "", errno.ErrBind.WithMessage("Malformed typed data")
	}
	var td apitypes.TypedData
	if err := json.Unmarshal(raw, &td); err != nil {
		return "", errno.ErrBind.WithMessage("Malformed typed data")
	}

	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return "", errno.ErrBind.WithMessage("Malformed typed data: " + err.Error())
	}

	sig, err := crypto.Sign(hash, priv)
	if err != nil {
		s.countError("sign-typed-data")
		return "", errno.InternalServerError
	}
	sig[64] += 27
	return hexutil.Encode(sig), nil
}

// ---- 内部 ----

func (s *Service) deriveFromMnemonic(mnemonic string) (address, privHex string, err error) {
	seed := s.mnemonics.MnemonicToSeed(mnemonic, "")
	hd, err := bip32.NewMasterKeyFromSeed(seed, &chaincfg.MainNetParams)
	if err != nil {
		return "", "", errno.InternalServerError
	}
	key, err := hd.DerivePath(bip32.EthereumPath)
	if err != nil {
		return "", "", errno.InternalServerError
	}
	ecPriv, err := key.ECPrivKey()
	if err != nil {
		return "", "", errno.InternalServerError
	}

	priv := ecPriv.ToECDSA()
	address = crypto.PubkeyToAddress(priv.PublicKey).Hex()
	privHex = hex.EncodeToString(crypto.FromECDSA(priv))
	return address, privHex, nil
}

// saveWallet 加密落盘 + 记库。同地址重复导入返回 ErrWalletExists。
func (s *Service) saveWallet(ctx context.Context, address, privHex, password, source string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Wallet{}).
		Where("lower(address) = lower(?)", address).Count(&count).Error; err != nil {
		return errno.ErrDatabase
	}
	if count > 0 {
		return errno.ErrWalletExists
	}

	encrypted, err := keystore.EncryptKey(address, privHex, password)
	if err != nil {
		return errno.InternalServerError
	}

	if err := os.MkdirAll(s.keystoreDir, 0700); err != nil {
		return errno.InternalServerError
	}
	path := filepath.Join(s.keystoreDir, strings.ToLower(address)+".json")
	if err := encrypted.SaveToFile(path); err != nil {
		return errno.InternalServerError
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return errno.InternalServerError
	}

	w := model.Wallet{
		Address:      address,
		KeystorePath: path,
		Checksum:     crypto_util.CalculateBlake3(raw),
		Source:       source,
	}
	if err := s.db.WithContext(ctx).Create(&w).Error; err != nil {
		return errno.ErrDatabase
	}
	return nil
}

func (s *Service) findWallet(ctx context.Context, address string) (*model.Wallet, error) {
	if !common.IsHexAddress(address) {
		return nil, errno.ErrInvalidAddress
	}
	var w model.Wallet
	err := s.db.WithContext(ctx).
		Where("lower(address) = lower(?)", address).First(&w).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errno.ErrWalletNotFound
		}
		return nil, errno.ErrDatabase
	}
	return &w, nil
}

// loadPrivateKey 读 keystore 文件并用密码解密。
// 解密前校验文件校验和，防止落盘内容被篡改。
func (s *Service) loadPrivateKey(ctx context.Context, address, password string) (*ecdsa.PrivateKey, error) {
	w, err := s.findWallet(ctx, address)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(w.KeystorePath)
	if err != nil {
		return nil, errno.InternalServerError
	}
	if crypto_util.CalculateBlake3(raw) != w.Checksum {
		logger.Error("[Wallet] keystore 校验和不匹配", zap.String("address", address))
		return nil, errno.InternalServerError
	}

	keyJSON, err := keystore.LoadFromFile(w.KeystorePath)
	if err != nil {
		return nil, errno.InternalServerError
	}

	privHex, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		if errors.Is(err, keystore.ErrInvalidPassword) {
			return nil, errno.ErrPasswordIncorrect
		}
		return nil, errno.InternalServerError
	}

	priv, err := crypto.HexToECDSA(strings.TrimPrefix(privHex, "0x"))
	if err != nil {
		return nil, errno.InternalServerError
	}
	return priv, nil
}

func (s *Service) logTransaction(ctx context.Context, from string, unsigned *signing.UnsignedTx, result *signing.BroadcastResult, status string) {
	amount := decimal.Zero
	if wei, err := hexutil.DecodeBig(defaultHex(unsigned.Value, "0x0")); err == nil {
		amount = decimal.NewFromBigInt(wei, -18)
	}
	entry := model.TransactionLog{
		FromAddress: from,
		ToAddress:   unsigned.To,
		Amount:      amount,
		TxHash:      result.TxHash,
		BlockNumber: result.BlockNumber,
		Status:      status,
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		logger.Error("[Wallet] 交易记录写入失败", zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.producer.Publish(ctx, mq.TopicWalletEvents, event.Address, payload); err != nil {
		logger.Warn("[Wallet] 事件发布失败", zap.String("type", event.Type), zap.Error(err))
	}
}

func (s *Service) countError(endpoint string) {
	if monitor.Business != nil {
		monitor.Business.SigningErrorsTotal.WithLabelValues(endpoint).Inc()
	}
}

func defaultHex(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
