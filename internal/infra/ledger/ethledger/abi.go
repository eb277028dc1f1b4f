package ethledger

// certificationABI is the interface of the Certification contract. Certificate
// and institute keys are strings so ids stay in their hex form on chain.
const certificationABI = `[
  {"type":"function","name":"generateCertificate","stateMutability":"nonpayable","inputs":[
    {"name":"certificateId","type":"string"},
    {"name":"uid","type":"string"},
    {"name":"candidateName","type":"string"},
    {"name":"courseName","type":"string"},
    {"name":"orgName","type":"string"},
    {"name":"ipfsHash","type":"string"},
    {"name":"instituteEmail","type":"string"},
    {"name":"digitalSignature","type":"string"}],"outputs":[]},
  {"type":"function","name":"getCertificate","stateMutability":"view","inputs":[
    {"name":"certificateId","type":"string"}],"outputs":[
    {"name":"uid","type":"string"},
    {"name":"candidateName","type":"string"},
    {"name":"courseName","type":"string"},
    {"name":"orgName","type":"string"},
    {"name":"ipfsHash","type":"string"},
    {"name":"instituteEmail","type":"string"},
    {"name":"digitalSignature","type":"string"},
    {"name":"revoked","type":"bool"},
    {"name":"issuedAt","type":"uint256"}]},
  {"type":"function","name":"isVerified","stateMutability":"view","inputs":[
    {"name":"certificateId","type":"string"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"isRevoked","stateMutability":"view","inputs":[
    {"name":"certificateId","type":"string"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"revokeCertificate","stateMutability":"nonpayable","inputs":[
    {"name":"certificateId","type":"string"}],"outputs":[]},
  {"type":"function","name":"getAllCertificateIds","stateMutability":"view","inputs":[],"outputs":[
    {"name":"","type":"string[]"}]},
  {"type":"function","name":"registerInstitute","stateMutability":"nonpayable","inputs":[
    {"name":"email","type":"string"},
    {"name":"name","type":"string"},
    {"name":"publicKey","type":"string"}],"outputs":[]},
  {"type":"function","name":"verifyInstitute","stateMutability":"nonpayable","inputs":[
    {"name":"email","type":"string"}],"outputs":[]},
  {"type":"function","name":"getInstitute","stateMutability":"view","inputs":[
    {"name":"email","type":"string"}],"outputs":[
    {"name":"name","type":"string"},
    {"name":"publicKey","type":"string"},
    {"name":"isVerified","type":"bool"},
    {"name":"registeredAt","type":"uint256"},
    {"name":"exists","type":"bool"}]}
]`
