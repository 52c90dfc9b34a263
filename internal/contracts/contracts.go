// Package contracts holds the ABI definitions for the on-chain surface we
// consume: the DonationHub campaign contract and the stablecoin ERC-20.
package contracts

// DonationHubABI covers the functions the service calls. The contract owns
// all accounting; nothing here is authoritative beyond the call signatures.
const DonationHubABI = `[
  {
    "constant": true,
    "inputs": [],
    "name": "getTotalCampaigns",
    "outputs": [{"name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "constant": true,
    "inputs": [{"name": "campaignId", "type": "uint256"}],
    "name": "campaigns",
    "outputs": [
      {"name": "name", "type": "string"},
      {"name": "description", "type": "string"},
      {"name": "imageUrl", "type": "string"},
      {"name": "documentUrl", "type": "string"},
      {"name": "raisedNow", "type": "uint256"},
      {"name": "totalRaise", "type": "uint256"},
      {"name": "recipientAddress", "type": "address"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "constant": true,
    "inputs": [{"name": "recipient", "type": "address"}],
    "name": "recipients",
    "outputs": [
      {"name": "name", "type": "string"},
      {"name": "description", "type": "string"},
      {"name": "website", "type": "string"},
      {"name": "verified", "type": "bool"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "constant": true,
    "inputs": [{"name": "donor", "type": "address"}],
    "name": "getDonorInfo",
    "outputs": [
      {"name": "totalDonated", "type": "uint256"},
      {
        "name": "donations",
        "type": "tuple[]",
        "components": [
          {"name": "campaignId", "type": "uint256"},
          {"name": "amount", "type": "uint256"}
        ]
      }
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "constant": true,
    "inputs": [{"name": "campaignId", "type": "uint256"}],
    "name": "getCampaignDonors",
    "outputs": [{"name": "", "type": "address[]"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "constant": true,
    "inputs": [{"name": "campaignId", "type": "uint256"}],
    "name": "getCampaignAmounts",
    "outputs": [{"name": "", "type": "uint256[]"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "campaignId", "type": "uint256"},
      {"name": "amount", "type": "uint256"}
    ],
    "name": "donate",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "name", "type": "string"},
      {"name": "description", "type": "string"},
      {"name": "documentUrl", "type": "string"},
      {"name": "imageUrl", "type": "string"},
      {"name": "totalRaise", "type": "uint256"}
    ],
    "name": "createCampaign",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

// StablecoinABI is the ERC-20 subset needed for balance reads and donation
// approvals.
const StablecoinABI = `[
  {
    "constant": true,
    "inputs": [{"name": "account", "type": "address"}],
    "name": "balanceOf",
    "outputs": [{"name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [
      {"name": "spender", "type": "address"},
      {"name": "amount", "type": "uint256"}
    ],
    "name": "approve",
    "outputs": [{"name": "", "type": "bool"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`
