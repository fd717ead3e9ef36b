package config

const SERVER_YML = `
guard:
  countryCode: "55"
  sessionSecret: "dev-session-secret"
  platform: "android"
  listener:
    port: 3000
  capture:
    timeoutSeconds: 4
    settleMillis: 500
    pauseMillis: 300
    quality: 65

sqlite:
  passPhrase: passphrase

twilio:
  accountSid:
  authToken:
  messagingServiceSid:
  enableDirectSms: false

google:
  applicationCredentials:
  storage:
    bucket: "sosguard"
    prefix: "sosguard-dev"
    settingsBackupSchedule: "*/30 * * * *"
    enableSettingsBackup: false

advisory:
  apiKey:
  model: "gemini-flash"
  maxOutputTokens: 150
  timeoutSeconds: 8
`
